package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/harborfin/compliance-middleware/pkg/badge"
	"github.com/harborfin/compliance-middleware/pkg/credential"
)

// BadgeDao is a data access object that maps directly to the 'badges' table
// in PostgreSQL. Badge ids come from the badge_ids sequence so burned ids
// are never reused.
type BadgeDao struct {
	bun.BaseModel  `bun:"table:badges,alias:b"`
	ID             int64     `bun:"id,pk"`
	Holder         string    `bun:"holder,notnull,type:varchar(42)"`
	CredentialType int64     `bun:"credential_type,notnull"`
	ContentHash    string    `bun:"content_hash,unique,notnull,type:varchar(66)"`
	IssuedAt       time.Time `bun:"issued_at,notnull"`
	ExpiresAt      int64     `bun:"expires_at,notnull"`
	MetadataRef    string    `bun:"metadata_ref,type:varchar(500)"`
}

// BadgeIDSeq backs the monotonic badge id sequence.
type BadgeIDSeq struct {
	bun.BaseModel `bun:"table:badge_id_seq,alias:bs"`
	ID            int64 `bun:"id,pk,autoincrement"`
}

func toBadgeDao(b *badge.Badge) *BadgeDao {
	return &BadgeDao{
		ID:             int64(b.ID),
		Holder:         b.Holder.Hex(),
		CredentialType: int64(b.CredentialType),
		ContentHash:    b.ContentHash.Hex(),
		IssuedAt:       b.IssuedAt,
		ExpiresAt:      int64(b.ExpiresAt),
		MetadataRef:    b.MetadataRef,
	}
}

func toBadge(dao *BadgeDao) *badge.Badge {
	return &badge.Badge{
		ID:             uint64(dao.ID),
		Holder:         common.HexToAddress(dao.Holder),
		CredentialType: credential.Type(dao.CredentialType),
		ContentHash:    common.HexToHash(dao.ContentHash),
		IssuedAt:       dao.IssuedAt,
		ExpiresAt:      uint64(dao.ExpiresAt),
		MetadataRef:    dao.MetadataRef,
	}
}

type pgStore struct {
	db *bun.DB
}

// NewPgStore creates a new postgres implementation of the badge store
func NewPgStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) NextID(ctx context.Context) (uint64, error) {
	seq := new(BadgeIDSeq)
	_, err := s.db.NewInsert().
		Model(seq).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate badge id: %w", err)
	}
	return uint64(seq.ID), nil
}

func (s *pgStore) Put(ctx context.Context, b *badge.Badge) error {
	res, err := s.db.NewInsert().
		Model(toBadgeDao(b)).
		On("CONFLICT (content_hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store badge: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrContentHashUsed
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uint64) (*badge.Badge, error) {
	dao := new(BadgeDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", int64(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	return toBadge(dao), nil
}

func (s *pgStore) Delete(ctx context.Context, id uint64) error {
	res, err := s.db.NewDelete().
		Model((*BadgeDao)(nil)).
		Where("id = ?", int64(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete badge: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBadgeNotFound
	}
	return nil
}

func (s *pgStore) ByHolderType(ctx context.Context, holder common.Address, credType credential.Type) (*badge.Badge, error) {
	dao := new(BadgeDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("holder = ?", holder.Hex()).
		Where("credential_type = ?", int64(credType)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("failed to get badge by holder/type: %w", err)
	}
	return toBadge(dao), nil
}

func (s *pgStore) ByContentHash(ctx context.Context, contentHash common.Hash) (*badge.Badge, error) {
	dao := new(BadgeDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("content_hash = ?", contentHash.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("failed to get badge by content hash: %w", err)
	}
	return toBadge(dao), nil
}

func (s *pgStore) HolderBadges(ctx context.Context, holder common.Address) ([]*badge.Badge, error) {
	var daos []BadgeDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("holder = ?", holder.Hex()).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holder badges: %w", err)
	}
	badges := make([]*badge.Badge, len(daos))
	for i := range daos {
		badges[i] = toBadge(&daos[i])
	}
	return badges, nil
}
