package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/verifier"
)

// memoryCredentialStore is the in-memory credential store used by tests and
// local development.
type memoryCredentialStore struct {
	mu         sync.RWMutex
	records    map[common.Hash]*verifier.Record
	bySubject  map[common.Address][]common.Hash
	usedProofs map[common.Hash]struct{}
}

// NewMemoryCredentialStore creates an in-memory credential store.
func NewMemoryCredentialStore() CredentialStore {
	return &memoryCredentialStore{
		records:    make(map[common.Hash]*verifier.Record),
		bySubject:  make(map[common.Address][]common.Hash),
		usedProofs: make(map[common.Hash]struct{}),
	}
}

func (s *memoryCredentialStore) PutRecord(ctx context.Context, rec *verifier.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ContentHash]; ok {
		return ErrRecordExists
	}
	r := *rec
	s.records[rec.ContentHash] = &r
	s.bySubject[rec.Subject] = append(s.bySubject[rec.Subject], rec.ContentHash)
	return nil
}

func (s *memoryCredentialStore) GetRecord(ctx context.Context, contentHash common.Hash) (*verifier.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[contentHash]
	if !ok {
		return nil, ErrRecordNotFound
	}
	r := *rec
	return &r, nil
}

func (s *memoryCredentialStore) SetInvalid(ctx context.Context, contentHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[contentHash]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Valid = false
	return nil
}

func (s *memoryCredentialStore) SubjectCredentials(ctx context.Context, subject common.Address) ([]common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]common.Hash(nil), s.bySubject[subject]...), nil
}

func (s *memoryCredentialStore) MarkProofUsed(ctx context.Context, replayKey common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usedProofs[replayKey]; ok {
		return ErrProofUsed
	}
	s.usedProofs[replayKey] = struct{}{}
	return nil
}

func (s *memoryCredentialStore) IsProofUsed(ctx context.Context, replayKey common.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.usedProofs[replayKey]
	return ok, nil
}
