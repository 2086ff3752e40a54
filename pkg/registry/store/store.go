// Package store defines the identity-registry storage layer. One storage
// instance may back several registries (many-to-one), so the interface
// carries no registry-specific state.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/registry"
)

var (
	ErrBindingNotFound = errors.New("wallet has no identity binding")
	ErrBindingExists   = errors.New("wallet already has an identity binding")
)

// Storage persists wallet-to-identity bindings.
type Storage interface {
	Bind(ctx context.Context, b *registry.Binding) error
	Get(ctx context.Context, wallet common.Address) (*registry.Binding, error)
	Update(ctx context.Context, b *registry.Binding) error
	Delete(ctx context.Context, wallet common.Address) error
	Contains(ctx context.Context, wallet common.Address) (bool, error)
}
