package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"
)

// RevocationDao is a data access object that maps directly to the
// 'claim_revocations' table in PostgreSQL.
type RevocationDao struct {
	bun.BaseModel `bun:"table:claim_revocations,alias:cr"`
	Issuer        string    `bun:"issuer,pk,type:varchar(42)"`
	SigHash       string    `bun:"sig_hash,pk,type:varchar(66)"`
	RevokedAt     time.Time `bun:"revoked_at,nullzero,default:current_timestamp"`
}

type pgRevocationStore struct {
	db *bun.DB
}

// NewPgRevocationStore creates a new postgres implementation of the
// revocation store
func NewPgRevocationStore(db *bun.DB) RevocationStore {
	return &pgRevocationStore{db: db}
}

func (s *pgRevocationStore) IsRevoked(ctx context.Context, issuer common.Address, sigHash common.Hash) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*RevocationDao)(nil)).
		Where("issuer = ?", issuer.Hex()).
		Where("sig_hash = ?", sigHash.Hex()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return exists, nil
}

func (s *pgRevocationStore) Revoke(ctx context.Context, issuer common.Address, sigHash common.Hash) error {
	res, err := s.db.NewInsert().
		Model(&RevocationDao{Issuer: issuer.Hex(), SigHash: sigHash.Hex()}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke signature: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyRevoked
	}
	return nil
}
