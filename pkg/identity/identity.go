// Package identity implements the per-investor identity record: purpose-typed
// keys and issuer-signed claims.
package identity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyPurpose describes what a key on an identity is allowed to do.
type KeyPurpose uint8

const (
	// PurposeManagement keys administer the identity itself.
	PurposeManagement KeyPurpose = 1
	// PurposeAction keys act on behalf of the identity.
	PurposeAction KeyPurpose = 2
	// PurposeClaimSigner keys sign claims issued by this identity.
	PurposeClaimSigner KeyPurpose = 3
	// PurposeEncryption keys encrypt data addressed to this identity.
	PurposeEncryption KeyPurpose = 4
)

// KeyType is the cryptographic scheme of a key.
type KeyType uint8

const (
	KeyTypeECDSA KeyType = 1
	KeyTypeRSA   KeyType = 2
)

// Key is a purpose-typed key held by an identity, addressed by the hash of
// its raw key material.
type Key struct {
	ID       common.Hash
	Purposes []KeyPurpose
	Type     KeyType
}

// HasPurpose reports whether the key carries the given purpose.
func (k *Key) HasPurpose(purpose KeyPurpose) bool {
	for _, p := range k.Purposes {
		if p == purpose {
			return true
		}
	}
	return false
}

// Claim is a typed, signed statement about an identity, issued by a specific
// issuer for a specific topic. Claims are keyed by (issuer, topic): re-adding
// a claim for the same pair overwrites the previous one.
type Claim struct {
	ID        common.Hash
	Topic     uint64
	Scheme    uint64
	Issuer    common.Address
	Signature []byte
	Data      []byte
	URI       string
}

// Identity is the aggregate of keys and claims for one investor or entity.
type Identity struct {
	Address common.Address
	Keys    map[common.Hash]*Key
	Claims  map[common.Hash]*Claim
}

// KeyID derives the key identifier for a raw key material blob.
func KeyID(raw []byte) common.Hash {
	return crypto.Keccak256Hash(raw)
}

// AddressKeyID derives the key identifier for a wallet address. Wallet keys
// are registered by the hash of the address bytes, so holding the wallet is
// holding the key.
func AddressKeyID(addr common.Address) common.Hash {
	return crypto.Keccak256Hash(addr.Bytes())
}

// ClaimID derives the claim identifier for an (issuer, topic) pair.
func ClaimID(issuer common.Address, topic uint64) common.Hash {
	return crypto.Keccak256Hash(issuer.Bytes(), topicBytes(topic))
}

func topicBytes(topic uint64) []byte {
	// Topics are hashed as 32-byte big-endian words, matching the canonical
	// claim encoding used for signatures.
	var b [32]byte
	for i := 0; i < 8; i++ {
		b[31-i] = byte(topic >> (8 * i))
	}
	return b[:]
}

// TopicWord returns the 32-byte big-endian encoding of a topic integer.
func TopicWord(topic uint64) [32]byte {
	var b [32]byte
	copy(b[:], topicBytes(topic))
	return b
}

// HasKeyWithPurpose reports whether the identity holds the given key with the
// given purpose.
func (id *Identity) HasKeyWithPurpose(keyID common.Hash, purpose KeyPurpose) bool {
	key, ok := id.Keys[keyID]
	if !ok {
		return false
	}
	return key.HasPurpose(purpose)
}

// ClaimIDsByTopic returns the ids of all claims held for a topic.
func (id *Identity) ClaimIDsByTopic(topic uint64) []common.Hash {
	var ids []common.Hash
	for _, c := range id.Claims {
		if c.Topic == topic {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
