package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/harborfin/compliance-middleware/pkg/identity"
)

type pgStore struct {
	db *bun.DB
}

// NewPgStore creates a new postgres implementation of the identity store
func NewPgStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Create(ctx context.Context, id *identity.Identity) error {
	res, err := s.db.NewInsert().
		Model(toIdentityDao(id)).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIdentityExists
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, addr common.Address) (*identity.Identity, error) {
	dao := new(IdentityDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("address = ?", addr.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return toIdentity(dao), nil
}

func (s *pgStore) Save(ctx context.Context, id *identity.Identity) error {
	dao := toIdentityDao(id)
	dao.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().
		Model(dao).
		Column("keys", "claims", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (s *pgStore) Delete(ctx context.Context, addr common.Address) error {
	res, err := s.db.NewDelete().
		Model((*IdentityDao)(nil)).
		Where("address = ?", addr.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (s *pgStore) Exists(ctx context.Context, addr common.Address) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*IdentityDao)(nil)).
		Where("address = ?", addr.Hex()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check identity exists: %w", err)
	}
	return exists, nil
}
