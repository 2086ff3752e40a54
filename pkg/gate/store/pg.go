package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// PositionDao is a data access object that maps directly to the
// 'venue_positions' table in PostgreSQL.
type PositionDao struct {
	bun.BaseModel `bun:"table:venue_positions,alias:vp"`
	Venue         string    `bun:"venue,pk,type:varchar(42)"`
	Investor      string    `bun:"investor,pk,type:varchar(42)"`
	Total         string    `bun:"total,notnull,type:numeric(38,18)"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

type pgPositionStore struct {
	db *bun.DB
}

// NewPgPositionStore creates a new postgres implementation of the position
// store
func NewPgPositionStore(db *bun.DB) PositionStore {
	return &pgPositionStore{db: db}
}

func (s *pgPositionStore) Position(ctx context.Context, venue, investor common.Address) (decimal.Decimal, error) {
	dao := new(PositionDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("venue = ?", venue.Hex()).
		Where("investor = ?", investor.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get position: %w", err)
	}

	total, err := decimal.NewFromString(dao.Total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse position total: %w", err)
	}
	return total, nil
}

func (s *pgPositionStore) SetPosition(ctx context.Context, venue, investor common.Address, total decimal.Decimal) error {
	dao := &PositionDao{
		Venue:    venue.Hex(),
		Investor: investor.Hex(),
		Total:    total.String(),
	}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (venue, investor) DO UPDATE").
		Set("total = EXCLUDED.total").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set position: %w", err)
	}
	return nil
}
