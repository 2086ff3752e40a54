package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/directory"
)

// memoryIssuerStore keeps trusted-issuer entries in memory, preserving
// registration order for listing.
type memoryIssuerStore struct {
	mu      sync.RWMutex
	entries map[common.Address]*directory.TrustedIssuer
	order   []common.Address
}

// NewMemoryIssuerStore creates an in-memory trusted-issuer store.
func NewMemoryIssuerStore() IssuerStore {
	return &memoryIssuerStore{
		entries: make(map[common.Address]*directory.TrustedIssuer),
	}
}

func (s *memoryIssuerStore) Put(ctx context.Context, entry *directory.TrustedIssuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.Issuer]; ok {
		return ErrIssuerExists
	}
	s.entries[entry.Issuer] = cloneIssuer(entry)
	s.order = append(s.order, entry.Issuer)
	return nil
}

func (s *memoryIssuerStore) Update(ctx context.Context, entry *directory.TrustedIssuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.Issuer]; !ok {
		return ErrIssuerNotFound
	}
	s.entries[entry.Issuer] = cloneIssuer(entry)
	return nil
}

func (s *memoryIssuerStore) Get(ctx context.Context, issuer common.Address) (*directory.TrustedIssuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[issuer]
	if !ok {
		return nil, ErrIssuerNotFound
	}
	return cloneIssuer(entry), nil
}

func (s *memoryIssuerStore) Delete(ctx context.Context, issuer common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[issuer]; !ok {
		return ErrIssuerNotFound
	}
	delete(s.entries, issuer)
	for i, addr := range s.order {
		if addr == issuer {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memoryIssuerStore) List(ctx context.Context) ([]*directory.TrustedIssuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*directory.TrustedIssuer, 0, len(s.order))
	for _, addr := range s.order {
		out = append(out, cloneIssuer(s.entries[addr]))
	}
	return out, nil
}

func cloneIssuer(entry *directory.TrustedIssuer) *directory.TrustedIssuer {
	return &directory.TrustedIssuer{
		Issuer: entry.Issuer,
		Topics: append([]uint64(nil), entry.Topics...),
	}
}

// memoryTopicStore keeps the required-topic set in memory in insertion
// order.
type memoryTopicStore struct {
	mu     sync.RWMutex
	topics []uint64
}

// NewMemoryTopicStore creates an in-memory claim-topic store.
func NewMemoryTopicStore() TopicStore {
	return &memoryTopicStore{}
}

func (s *memoryTopicStore) Add(ctx context.Context, topic uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.topics {
		if t == topic {
			return ErrTopicExists
		}
	}
	s.topics = append(s.topics, topic)
	return nil
}

func (s *memoryTopicStore) Remove(ctx context.Context, topic uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.topics {
		if t == topic {
			s.topics = append(s.topics[:i], s.topics[i+1:]...)
			return nil
		}
	}
	return ErrTopicNotFound
}

func (s *memoryTopicStore) List(ctx context.Context) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]uint64(nil), s.topics...), nil
}
