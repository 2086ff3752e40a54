// Package verifier implements the credential proof verifier: it consumes
// externally produced zero-knowledge proofs, enforces replay and content-hash
// uniqueness, and records verified credentials per subject.
package verifier

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/credential"
)

// Record is a verified-credential record, content-addressed by the hash the
// proof committed to. Validity flips to false on revocation and never back.
type Record struct {
	ContentHash    common.Hash
	Subject        common.Address
	CredentialType credential.Type
	IssuedAt       uint64
	ExpiresAt      uint64
	VerifiedAt     time.Time
	Valid          bool
}

// Expired reports whether the record's own expiry has passed at the given
// time. A zero ExpiresAt never expires on its own.
func (r *Record) Expired(at time.Time) bool {
	return r.ExpiresAt != 0 && at.Unix() >= int64(r.ExpiresAt)
}
