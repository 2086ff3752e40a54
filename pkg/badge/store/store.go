// Package store defines persistence for credential badges.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/badge"
	"github.com/harborfin/compliance-middleware/pkg/credential"
)

var (
	ErrBadgeNotFound   = errors.New("badge not found")
	ErrContentHashUsed = errors.New("content hash already bound to a badge")
)

// Store persists badges and the (holder, type) and content-hash indices.
// NextID must never hand out the same id twice, burns included.
type Store interface {
	NextID(ctx context.Context) (uint64, error)
	Put(ctx context.Context, b *badge.Badge) error
	Get(ctx context.Context, id uint64) (*badge.Badge, error)
	Delete(ctx context.Context, id uint64) error

	ByHolderType(ctx context.Context, holder common.Address, credType credential.Type) (*badge.Badge, error)
	ByContentHash(ctx context.Context, contentHash common.Hash) (*badge.Badge, error)
	HolderBadges(ctx context.Context, holder common.Address) ([]*badge.Badge, error)
}
