package zkproof

import (
	"context"
	"crypto/sha256"
	"errors"
)

// ErrProofInvalid is returned by backends when a proof does not verify
// against the given verification key and public outputs.
var ErrProofInvalid = errors.New("proof verification failed")

// Backend verifies an opaque proof artifact against a program verification
// key and the public outputs it claims to commit to. Implementations wrap an
// external proving system; callers must treat any error as "invalid" and
// never let it propagate through compliance evaluation.
type Backend interface {
	VerifyProof(ctx context.Context, vkey, publicOutputs, proof []byte) error
}

// CommitmentBackend is the development backend. It accepts a proof iff the
// proof bytes equal the SHA-256 commitment of (vkey || publicOutputs),
// mirroring the simplified verification the upstream proving program ships
// with. A production deployment substitutes a real SP1/Groth16 backend.
type CommitmentBackend struct{}

// NewCommitmentBackend creates the development commitment backend.
func NewCommitmentBackend() *CommitmentBackend {
	return &CommitmentBackend{}
}

// Prove computes the commitment a proof artifact must carry for the given
// key and outputs. Used by tests and local tooling to fabricate acceptable
// artifacts.
func (b *CommitmentBackend) Prove(vkey, publicOutputs []byte) []byte {
	h := sha256.New()
	h.Write(vkey)
	h.Write(publicOutputs)
	return h.Sum(nil)
}

// VerifyProof checks the proof commitment.
func (b *CommitmentBackend) VerifyProof(ctx context.Context, vkey, publicOutputs, proof []byte) error {
	if len(proof) != sha256.Size {
		return ErrProofInvalid
	}
	want := b.Prove(vkey, publicOutputs)
	for i := range want {
		if proof[i] != want[i] {
			return ErrProofInvalid
		}
	}
	return nil
}
