package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/harborfin/compliance-middleware/pkg/registry"
)

type pgStorage struct {
	db *bun.DB
}

// NewPgStorage creates a new postgres implementation of the binding storage
func NewPgStorage(db *bun.DB) Storage {
	return &pgStorage{db: db}
}

func (s *pgStorage) Bind(ctx context.Context, b *registry.Binding) error {
	exists, err := s.Contains(ctx, b.Wallet)
	if err != nil {
		return err
	}
	if exists {
		return ErrBindingExists
	}

	_, err = s.db.NewInsert().
		Model(toBindingDao(b)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create binding: %w", err)
	}
	return nil
}

func (s *pgStorage) Get(ctx context.Context, wallet common.Address) (*registry.Binding, error) {
	dao := new(BindingDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("wallet = ?", wallet.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}
	return toBinding(dao), nil
}

func (s *pgStorage) Update(ctx context.Context, b *registry.Binding) error {
	res, err := s.db.NewUpdate().
		Model(toBindingDao(b)).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update binding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBindingNotFound
	}
	return nil
}

func (s *pgStorage) Delete(ctx context.Context, wallet common.Address) error {
	res, err := s.db.NewDelete().
		Model((*BindingDao)(nil)).
		Where("wallet = ?", wallet.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBindingNotFound
	}
	return nil
}

func (s *pgStorage) Contains(ctx context.Context, wallet common.Address) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*BindingDao)(nil)).
		Where("wallet = ?", wallet.Hex()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check binding exists: %w", err)
	}
	return exists, nil
}
