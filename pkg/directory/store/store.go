// Package store defines persistence for the trust directories.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/directory"
)

var (
	ErrIssuerNotFound = errors.New("trusted issuer not found")
	ErrIssuerExists   = errors.New("trusted issuer already registered")
	ErrTopicNotFound  = errors.New("claim topic not found")
	ErrTopicExists    = errors.New("claim topic already required")
)

// IssuerStore persists trusted-issuer entries.
type IssuerStore interface {
	Put(ctx context.Context, entry *directory.TrustedIssuer) error
	Update(ctx context.Context, entry *directory.TrustedIssuer) error
	Get(ctx context.Context, issuer common.Address) (*directory.TrustedIssuer, error)
	Delete(ctx context.Context, issuer common.Address) error
	List(ctx context.Context) ([]*directory.TrustedIssuer, error)
}

// TopicStore persists the ordered required-topic set.
type TopicStore interface {
	Add(ctx context.Context, topic uint64) error
	Remove(ctx context.Context, topic uint64) error
	List(ctx context.Context) ([]uint64, error)
}
