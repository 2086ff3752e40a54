// Package store defines persistence for token balances.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// BalanceStore tracks per-holder balances of one token. Missing balances
// read as zero.
type BalanceStore interface {
	Balance(ctx context.Context, holder common.Address) (decimal.Decimal, error)
	SetBalance(ctx context.Context, holder common.Address, balance decimal.Decimal) error
}
