package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type positionKey struct {
	venue    common.Address
	investor common.Address
}

// memoryPositionStore is the in-memory position store used by tests and
// local development.
type memoryPositionStore struct {
	mu        sync.RWMutex
	positions map[positionKey]decimal.Decimal
}

// NewMemoryPositionStore creates an in-memory position store.
func NewMemoryPositionStore() PositionStore {
	return &memoryPositionStore{
		positions: make(map[positionKey]decimal.Decimal),
	}
}

func (s *memoryPositionStore) Position(ctx context.Context, venue, investor common.Address) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.positions[positionKey{venue, investor}]; ok {
		return p, nil
	}
	return decimal.Zero, nil
}

func (s *memoryPositionStore) SetPosition(ctx context.Context, venue, investor common.Address, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[positionKey{venue, investor}] = total
	return nil
}
