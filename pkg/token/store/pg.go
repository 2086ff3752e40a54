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

// BalanceDao is a data access object that maps directly to the
// 'token_balances' table in PostgreSQL.
type BalanceDao struct {
	bun.BaseModel `bun:"table:token_balances,alias:tb"`
	Holder        string    `bun:"holder,pk,type:varchar(42)"`
	Balance       string    `bun:"balance,notnull,type:numeric(38,18)"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

type pgBalanceStore struct {
	db *bun.DB
}

// NewPgBalanceStore creates a new postgres implementation of the balance
// store
func NewPgBalanceStore(db *bun.DB) BalanceStore {
	return &pgBalanceStore{db: db}
}

func (s *pgBalanceStore) Balance(ctx context.Context, holder common.Address) (decimal.Decimal, error) {
	dao := new(BalanceDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("holder = ?", holder.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(dao.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}
	return balance, nil
}

func (s *pgBalanceStore) SetBalance(ctx context.Context, holder common.Address, balance decimal.Decimal) error {
	dao := &BalanceDao{
		Holder:  holder.Hex(),
		Balance: balance.String(),
	}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (holder) DO UPDATE").
		Set("balance = EXCLUDED.balance").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}
