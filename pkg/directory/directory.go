// Package directory implements the two trust directories consulted during
// verification: which issuers are trusted for which claim topics, and which
// topics a holder must satisfy to count as verified.
package directory

import (
	"github.com/ethereum/go-ethereum/common"
)

// TrustedIssuer is a directory entry: an issuer identity and the claim
// topics it is trusted to attest. Trust is per-topic; an issuer trusted for
// one topic carries no authority for any other.
type TrustedIssuer struct {
	Issuer common.Address
	Topics []uint64
}

// HasTopic reports whether the entry lists the given topic.
func (t *TrustedIssuer) HasTopic(topic uint64) bool {
	for _, candidate := range t.Topics {
		if candidate == topic {
			return true
		}
	}
	return false
}
