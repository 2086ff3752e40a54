// Package zkproof defines the boundary to the external zero-knowledge
// credential-proof system: the canonical public-output encoding and the
// verification backend interface.
package zkproof

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/credential"
)

// PublicOutputsLen is the canonical encoded size of the proof's public
// outputs: subject (20) + credential type (4) + content hash (32) +
// issued-at (8) + expires-at (8).
const PublicOutputsLen = 72

var ErrInvalidOutputsLength = errors.New("invalid public outputs length")

// PublicOutputs is the fixed 5-tuple a credential proof commits to. The
// field order and the little-endian integer encoding come from the proving
// program and must not change.
type PublicOutputs struct {
	Subject        common.Address
	CredentialType credential.Type
	ContentHash    common.Hash
	IssuedAt       uint64
	// ExpiresAt is the expiry timestamp in unix seconds; zero means the
	// credential never expires on its own.
	ExpiresAt uint64
}

// Encode packs the outputs into the canonical 72-byte layout.
func (o *PublicOutputs) Encode() []byte {
	buf := make([]byte, PublicOutputsLen)
	copy(buf[0:20], o.Subject.Bytes())
	binary.LittleEndian.PutUint32(buf[20:24], uint32(o.CredentialType))
	copy(buf[24:56], o.ContentHash.Bytes())
	binary.LittleEndian.PutUint64(buf[56:64], o.IssuedAt)
	binary.LittleEndian.PutUint64(buf[64:72], o.ExpiresAt)
	return buf
}

// Decode parses the canonical 72-byte public-output encoding.
func Decode(raw []byte) (*PublicOutputs, error) {
	if len(raw) != PublicOutputsLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidOutputsLength, PublicOutputsLen, len(raw))
	}

	out := &PublicOutputs{
		Subject:        common.BytesToAddress(raw[0:20]),
		CredentialType: credential.Type(binary.LittleEndian.Uint32(raw[20:24])),
		ContentHash:    common.BytesToHash(raw[24:56]),
		IssuedAt:       binary.LittleEndian.Uint64(raw[56:64]),
		ExpiresAt:      binary.LittleEndian.Uint64(raw[64:72]),
	}
	return out, nil
}
