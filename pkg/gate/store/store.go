// Package store defines persistence for per-venue investor positions.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PositionStore tracks the cumulative invested amount per (venue, investor).
// Missing positions read as zero.
type PositionStore interface {
	Position(ctx context.Context, venue, investor common.Address) (decimal.Decimal, error)
	SetPosition(ctx context.Context, venue, investor common.Address, total decimal.Decimal) error
}
