// Package store defines persistence for issuer-side claim revocations.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var ErrAlreadyRevoked = errors.New("signature already revoked")

// RevocationStore tracks revoked claim signatures per issuer. Revocation is
// permanent; there is no un-revoke.
type RevocationStore interface {
	IsRevoked(ctx context.Context, issuer common.Address, sigHash common.Hash) (bool, error)
	Revoke(ctx context.Context, issuer common.Address, sigHash common.Hash) error
}
