package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// memoryBalanceStore is the in-memory balance store used by tests and local
// development.
type memoryBalanceStore struct {
	mu       sync.RWMutex
	balances map[common.Address]decimal.Decimal
}

// NewMemoryBalanceStore creates an in-memory balance store.
func NewMemoryBalanceStore() BalanceStore {
	return &memoryBalanceStore{
		balances: make(map[common.Address]decimal.Decimal),
	}
}

func (s *memoryBalanceStore) Balance(ctx context.Context, holder common.Address) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[holder]; ok {
		return b, nil
	}
	return decimal.Zero, nil
}

func (s *memoryBalanceStore) SetBalance(ctx context.Context, holder common.Address, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[holder] = balance
	return nil
}
