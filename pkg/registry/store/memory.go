package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/registry"
)

// memoryStorage is the in-memory binding storage used by tests and local
// development.
type memoryStorage struct {
	mu       sync.RWMutex
	bindings map[common.Address]registry.Binding
}

// NewMemoryStorage creates an in-memory identity-registry storage.
func NewMemoryStorage() Storage {
	return &memoryStorage{
		bindings: make(map[common.Address]registry.Binding),
	}
}

func (s *memoryStorage) Bind(ctx context.Context, b *registry.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[b.Wallet]; ok {
		return ErrBindingExists
	}
	s.bindings[b.Wallet] = *b
	return nil
}

func (s *memoryStorage) Get(ctx context.Context, wallet common.Address) (*registry.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[wallet]
	if !ok {
		return nil, ErrBindingNotFound
	}
	out := b
	return &out, nil
}

func (s *memoryStorage) Update(ctx context.Context, b *registry.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[b.Wallet]; !ok {
		return ErrBindingNotFound
	}
	s.bindings[b.Wallet] = *b
	return nil
}

func (s *memoryStorage) Delete(ctx context.Context, wallet common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[wallet]; !ok {
		return ErrBindingNotFound
	}
	delete(s.bindings, wallet)
	return nil
}

func (s *memoryStorage) Contains(ctx context.Context, wallet common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.bindings[wallet]
	return ok, nil
}
