// Package issuer implements the claim-issuer trust model: claim signature
// authentication, revocation, and the zero-knowledge claim path.
package issuer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/harborfin/compliance-middleware/pkg/identity"
)

// ClaimDigest computes the canonical digest an issuer signs for a claim:
// keccak256(identity address || topic as 32-byte word || claim data). The
// digest is then signed under the fixed-length EIP-191 prefix.
func ClaimDigest(subject common.Address, topic uint64, data []byte) [32]byte {
	word := identity.TopicWord(topic)
	return crypto.Keccak256Hash(subject.Bytes(), word[:], data)
}

// SignatureHash keys a signature for the revocation set. Revocation is by
// exact signature bytes, so two claims signed with the same signature share
// revocation state.
func SignatureHash(signature []byte) common.Hash {
	return crypto.Keccak256Hash(signature)
}
