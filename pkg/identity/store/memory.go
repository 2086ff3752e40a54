package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/identity"
)

// memoryStore is an in-memory identity store used by tests and local
// development. Aggregates are deep-copied on the way in and out so callers
// cannot mutate stored state behind the store's back.
type memoryStore struct {
	mu         sync.RWMutex
	identities map[common.Address]*identity.Identity
}

// NewMemoryStore creates an in-memory identity store.
func NewMemoryStore() Store {
	return &memoryStore{
		identities: make(map[common.Address]*identity.Identity),
	}
}

func (s *memoryStore) Create(ctx context.Context, id *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[id.Address]; ok {
		return ErrIdentityExists
	}
	s.identities[id.Address] = cloneIdentity(id)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, addr common.Address) (*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identities[addr]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return cloneIdentity(id), nil
}

func (s *memoryStore) Save(ctx context.Context, id *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[id.Address]; !ok {
		return ErrIdentityNotFound
	}
	s.identities[id.Address] = cloneIdentity(id)
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[addr]; !ok {
		return ErrIdentityNotFound
	}
	delete(s.identities, addr)
	return nil
}

func (s *memoryStore) Exists(ctx context.Context, addr common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.identities[addr]
	return ok, nil
}

func cloneIdentity(id *identity.Identity) *identity.Identity {
	out := &identity.Identity{
		Address: id.Address,
		Keys:    make(map[common.Hash]*identity.Key, len(id.Keys)),
		Claims:  make(map[common.Hash]*identity.Claim, len(id.Claims)),
	}
	for kid, key := range id.Keys {
		k := *key
		k.Purposes = append([]identity.KeyPurpose(nil), key.Purposes...)
		out.Keys[kid] = &k
	}
	for cid, claim := range id.Claims {
		c := *claim
		c.Signature = append([]byte(nil), claim.Signature...)
		c.Data = append([]byte(nil), claim.Data...)
		out.Claims[cid] = &c
	}
	return out
}
