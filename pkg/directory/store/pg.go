package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/harborfin/compliance-middleware/pkg/directory"
)

// TrustedIssuerDao is a data access object that maps directly to the
// 'trusted_issuers' table in PostgreSQL. Topics are stored as a bigint
// array; registration order is the insertion order via the serial id.
type TrustedIssuerDao struct {
	bun.BaseModel `bun:"table:trusted_issuers,alias:ti"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Issuer        string    `bun:"issuer,unique,notnull,type:varchar(42)"`
	Topics        []int64   `bun:"topics,array,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// ClaimTopicDao is a data access object that maps directly to the
// 'claim_topics' table in PostgreSQL.
type ClaimTopicDao struct {
	bun.BaseModel `bun:"table:claim_topics,alias:ct"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Topic         int64     `bun:"topic,unique,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

func toIssuerDao(entry *directory.TrustedIssuer) *TrustedIssuerDao {
	topics := make([]int64, len(entry.Topics))
	for i, t := range entry.Topics {
		topics[i] = int64(t)
	}
	return &TrustedIssuerDao{Issuer: entry.Issuer.Hex(), Topics: topics}
}

func toTrustedIssuer(dao *TrustedIssuerDao) *directory.TrustedIssuer {
	topics := make([]uint64, len(dao.Topics))
	for i, t := range dao.Topics {
		topics[i] = uint64(t)
	}
	return &directory.TrustedIssuer{Issuer: common.HexToAddress(dao.Issuer), Topics: topics}
}

type pgIssuerStore struct {
	db *bun.DB
}

// NewPgIssuerStore creates a new postgres implementation of the
// trusted-issuer store
func NewPgIssuerStore(db *bun.DB) IssuerStore {
	return &pgIssuerStore{db: db}
}

func (s *pgIssuerStore) Put(ctx context.Context, entry *directory.TrustedIssuer) error {
	exists, err := s.db.NewSelect().
		Model((*TrustedIssuerDao)(nil)).
		Where("issuer = ?", entry.Issuer.Hex()).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check trusted issuer exists: %w", err)
	}
	if exists {
		return ErrIssuerExists
	}

	_, err = s.db.NewInsert().
		Model(toIssuerDao(entry)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create trusted issuer: %w", err)
	}
	return nil
}

func (s *pgIssuerStore) Update(ctx context.Context, entry *directory.TrustedIssuer) error {
	dao := toIssuerDao(entry)
	res, err := s.db.NewUpdate().
		Model(dao).
		Set("topics = ?", dao.Topics).
		Where("issuer = ?", dao.Issuer).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update trusted issuer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIssuerNotFound
	}
	return nil
}

func (s *pgIssuerStore) Get(ctx context.Context, issuer common.Address) (*directory.TrustedIssuer, error) {
	dao := new(TrustedIssuerDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("issuer = ?", issuer.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIssuerNotFound
		}
		return nil, fmt.Errorf("failed to get trusted issuer: %w", err)
	}
	return toTrustedIssuer(dao), nil
}

func (s *pgIssuerStore) Delete(ctx context.Context, issuer common.Address) error {
	res, err := s.db.NewDelete().
		Model((*TrustedIssuerDao)(nil)).
		Where("issuer = ?", issuer.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete trusted issuer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIssuerNotFound
	}
	return nil
}

func (s *pgIssuerStore) List(ctx context.Context) ([]*directory.TrustedIssuer, error) {
	var daos []TrustedIssuerDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted issuers: %w", err)
	}
	entries := make([]*directory.TrustedIssuer, len(daos))
	for i := range daos {
		entries[i] = toTrustedIssuer(&daos[i])
	}
	return entries, nil
}

type pgTopicStore struct {
	db *bun.DB
}

// NewPgTopicStore creates a new postgres implementation of the claim-topic
// store
func NewPgTopicStore(db *bun.DB) TopicStore {
	return &pgTopicStore{db: db}
}

func (s *pgTopicStore) Add(ctx context.Context, topic uint64) error {
	res, err := s.db.NewInsert().
		Model(&ClaimTopicDao{Topic: int64(topic)}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add claim topic: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTopicExists
	}
	return nil
}

func (s *pgTopicStore) Remove(ctx context.Context, topic uint64) error {
	res, err := s.db.NewDelete().
		Model((*ClaimTopicDao)(nil)).
		Where("topic = ?", int64(topic)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove claim topic: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTopicNotFound
	}
	return nil
}

func (s *pgTopicStore) List(ctx context.Context) ([]uint64, error) {
	var daos []ClaimTopicDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list claim topics: %w", err)
	}
	topics := make([]uint64, len(daos))
	for i := range daos {
		topics[i] = uint64(daos[i].Topic)
	}
	return topics, nil
}
