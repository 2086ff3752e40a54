// Package store defines persistence for identity aggregates.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/identity"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
)

// Store persists identity aggregates keyed by identity address.
type Store interface {
	Create(ctx context.Context, id *identity.Identity) error
	Get(ctx context.Context, addr common.Address) (*identity.Identity, error)
	Save(ctx context.Context, id *identity.Identity) error
	Delete(ctx context.Context, addr common.Address) error
	Exists(ctx context.Context, addr common.Address) (bool, error)
}
