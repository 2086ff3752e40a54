// Package badge implements the non-transferable credential badge registry:
// one live badge per (holder, credential type), one badge per content hash,
// mint and burn as the only legal state transitions.
package badge

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/credential"
)

// Badge is a soulbound credential badge. IDs are monotonically increasing
// and never reused, including across burns.
type Badge struct {
	ID             uint64
	Holder         common.Address
	CredentialType credential.Type
	ContentHash    common.Hash
	IssuedAt       time.Time
	// ExpiresAt is unix seconds; zero means the badge does not expire.
	ExpiresAt   uint64
	MetadataRef string
}

// Expired reports whether the badge's expiry has passed at the given time.
func (b *Badge) Expired(at time.Time) bool {
	return b.ExpiresAt != 0 && at.Unix() >= int64(b.ExpiresAt)
}
