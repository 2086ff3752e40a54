// Package store defines persistence for verified-credential records and the
// used-proof replay set.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/verifier"
)

var (
	ErrRecordNotFound = errors.New("verified credential not found")
	ErrRecordExists   = errors.New("content hash already has a verified credential")
	ErrProofUsed      = errors.New("proof already used")
)

// CredentialStore persists verified-credential records, the per-subject
// credential index, and the used-proof set. The used-proof set is a replay
// defense distinct from content-hash uniqueness: one content hash could in
// principle be provable by more than one proof artifact.
type CredentialStore interface {
	PutRecord(ctx context.Context, rec *verifier.Record) error
	GetRecord(ctx context.Context, contentHash common.Hash) (*verifier.Record, error)
	SetInvalid(ctx context.Context, contentHash common.Hash) error
	SubjectCredentials(ctx context.Context, subject common.Address) ([]common.Hash, error)

	MarkProofUsed(ctx context.Context, replayKey common.Hash) error
	IsProofUsed(ctx context.Context, replayKey common.Hash) (bool, error)
}
