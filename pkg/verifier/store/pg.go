package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/harborfin/compliance-middleware/pkg/credential"
	"github.com/harborfin/compliance-middleware/pkg/verifier"
)

// CredentialDao is a data access object that maps directly to the
// 'verified_credentials' table in PostgreSQL.
type CredentialDao struct {
	bun.BaseModel  `bun:"table:verified_credentials,alias:vc"`
	ID             int64     `bun:"id,pk,autoincrement"`
	ContentHash    string    `bun:"content_hash,unique,notnull,type:varchar(66)"`
	Subject        string    `bun:"subject,notnull,type:varchar(42)"`
	CredentialType int64     `bun:"credential_type,notnull"`
	IssuedAt       int64     `bun:"issued_at,notnull"`
	ExpiresAt      int64     `bun:"expires_at,notnull"`
	VerifiedAt     time.Time `bun:"verified_at,notnull"`
	Valid          bool      `bun:"valid,notnull"`
}

// UsedProofDao is a data access object that maps directly to the
// 'used_proofs' table in PostgreSQL.
type UsedProofDao struct {
	bun.BaseModel `bun:"table:used_proofs,alias:up"`
	ReplayKey     string    `bun:"replay_key,pk,type:varchar(66)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

func toCredentialDao(rec *verifier.Record) *CredentialDao {
	return &CredentialDao{
		ContentHash:    rec.ContentHash.Hex(),
		Subject:        rec.Subject.Hex(),
		CredentialType: int64(rec.CredentialType),
		IssuedAt:       int64(rec.IssuedAt),
		ExpiresAt:      int64(rec.ExpiresAt),
		VerifiedAt:     rec.VerifiedAt,
		Valid:          rec.Valid,
	}
}

func toRecord(dao *CredentialDao) *verifier.Record {
	return &verifier.Record{
		ContentHash:    common.HexToHash(dao.ContentHash),
		Subject:        common.HexToAddress(dao.Subject),
		CredentialType: credential.Type(dao.CredentialType),
		IssuedAt:       uint64(dao.IssuedAt),
		ExpiresAt:      uint64(dao.ExpiresAt),
		VerifiedAt:     dao.VerifiedAt,
		Valid:          dao.Valid,
	}
}

type pgCredentialStore struct {
	db *bun.DB
}

// NewPgCredentialStore creates a new postgres implementation of the
// credential store
func NewPgCredentialStore(db *bun.DB) CredentialStore {
	return &pgCredentialStore{db: db}
}

func (s *pgCredentialStore) PutRecord(ctx context.Context, rec *verifier.Record) error {
	res, err := s.db.NewInsert().
		Model(toCredentialDao(rec)).
		On("CONFLICT (content_hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store credential record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordExists
	}
	return nil
}

func (s *pgCredentialStore) GetRecord(ctx context.Context, contentHash common.Hash) (*verifier.Record, error) {
	dao := new(CredentialDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("content_hash = ?", contentHash.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get credential record: %w", err)
	}
	return toRecord(dao), nil
}

func (s *pgCredentialStore) SetInvalid(ctx context.Context, contentHash common.Hash) error {
	res, err := s.db.NewUpdate().
		Model((*CredentialDao)(nil)).
		Set("valid = FALSE").
		Where("content_hash = ?", contentHash.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to invalidate credential: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *pgCredentialStore) SubjectCredentials(ctx context.Context, subject common.Address) ([]common.Hash, error) {
	var daos []CredentialDao
	err := s.db.NewSelect().
		Model(&daos).
		Column("content_hash").
		Where("subject = ?", subject.Hex()).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subject credentials: %w", err)
	}
	hashes := make([]common.Hash, len(daos))
	for i := range daos {
		hashes[i] = common.HexToHash(daos[i].ContentHash)
	}
	return hashes, nil
}

func (s *pgCredentialStore) MarkProofUsed(ctx context.Context, replayKey common.Hash) error {
	res, err := s.db.NewInsert().
		Model(&UsedProofDao{ReplayKey: replayKey.Hex()}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark proof used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProofUsed
	}
	return nil
}

func (s *pgCredentialStore) IsProofUsed(ctx context.Context, replayKey common.Hash) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*UsedProofDao)(nil)).
		Where("replay_key = ?", replayKey.Hex()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check proof used: %w", err)
	}
	return exists, nil
}
