package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/badge"
	"github.com/harborfin/compliance-middleware/pkg/credential"
)

type holderTypeKey struct {
	holder   common.Address
	credType credential.Type
}

// memoryStore is the in-memory badge store used by tests and local
// development.
type memoryStore struct {
	mu           sync.RWMutex
	nextID       uint64
	badges       map[uint64]*badge.Badge
	byHolderType map[holderTypeKey]uint64
	byHash       map[common.Hash]uint64
}

// NewMemoryStore creates an in-memory badge store. IDs start at 1.
func NewMemoryStore() Store {
	return &memoryStore{
		nextID:       1,
		badges:       make(map[uint64]*badge.Badge),
		byHolderType: make(map[holderTypeKey]uint64),
		byHash:       make(map[common.Hash]uint64),
	}
}

func (s *memoryStore) NextID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *memoryStore) Put(ctx context.Context, b *badge.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byHash[b.ContentHash]; ok && owner != b.ID {
		return ErrContentHashUsed
	}
	cp := *b
	s.badges[b.ID] = &cp
	s.byHolderType[holderTypeKey{b.Holder, b.CredentialType}] = b.ID
	s.byHash[b.ContentHash] = b.ID
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id uint64) (*badge.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.badges[id]
	if !ok {
		return nil, ErrBadgeNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memoryStore) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.badges[id]
	if !ok {
		return ErrBadgeNotFound
	}
	delete(s.badges, id)
	delete(s.byHolderType, holderTypeKey{b.Holder, b.CredentialType})
	delete(s.byHash, b.ContentHash)
	return nil
}

func (s *memoryStore) ByHolderType(ctx context.Context, holder common.Address, credType credential.Type) (*badge.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHolderType[holderTypeKey{holder, credType}]
	if !ok {
		return nil, ErrBadgeNotFound
	}
	cp := *s.badges[id]
	return &cp, nil
}

func (s *memoryStore) ByContentHash(ctx context.Context, contentHash common.Hash) (*badge.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[contentHash]
	if !ok {
		return nil, ErrBadgeNotFound
	}
	cp := *s.badges[id]
	return &cp, nil
}

func (s *memoryStore) HolderBadges(ctx context.Context, holder common.Address) ([]*badge.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*badge.Badge
	for _, b := range s.badges {
		if b.Holder == holder {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
