package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type revocationKey struct {
	issuer  common.Address
	sigHash common.Hash
}

// memoryRevocationStore is the in-memory revocation set used by tests and
// local development.
type memoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[revocationKey]struct{}
}

// NewMemoryRevocationStore creates an in-memory revocation store.
func NewMemoryRevocationStore() RevocationStore {
	return &memoryRevocationStore{
		revoked: make(map[revocationKey]struct{}),
	}
}

func (s *memoryRevocationStore) IsRevoked(ctx context.Context, issuer common.Address, sigHash common.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.revoked[revocationKey{issuer, sigHash}]
	return ok, nil
}

func (s *memoryRevocationStore) Revoke(ctx context.Context, issuer common.Address, sigHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := revocationKey{issuer, sigHash}
	if _, ok := s.revoked[key]; ok {
		return ErrAlreadyRevoked
	}
	s.revoked[key] = struct{}{}
	return nil
}
