package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/internal/metrics"
	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/credential"
	"github.com/harborfin/compliance-middleware/pkg/verifier"
	"github.com/harborfin/compliance-middleware/pkg/verifier/store"
	"github.com/harborfin/compliance-middleware/pkg/zkproof"
)

var (
	ErrProofAlreadyUsed          = errors.New("proof already used")
	ErrProofVerificationFailed   = errors.New("proof verification failed")
	ErrInvalidPublicValues       = errors.New("invalid public values")
	ErrCredentialAlreadyVerified = errors.New("credential already verified")
	ErrCredentialNotFound        = errors.New("credential not found")
	ErrNotOwner                  = errors.New("caller is not the verifier owner")
)

// customKeyNamespace separates the replay set of caller-supplied verification
// keys from the default-key replay set, so the two can never collide.
var customKeyNamespace = []byte("custom-vkey")

// Service is the credential proof verifier. It checks externally produced
// proofs against the registered program verification key, defends against
// proof replay and content-hash reuse, and keeps the per-subject list of
// verified credentials.
type Service struct {
	store       store.CredentialStore
	backend     zkproof.Backend
	programVKey []byte

	owner common.Address
	// globalExpiration bounds credential lifetime from the verification
	// timestamp; zero disables the window.
	globalExpiration time.Duration

	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new credential verifier service
func NewService(
	credStore store.CredentialStore,
	backend zkproof.Backend,
	programVKey []byte,
	owner common.Address,
	globalExpiration time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:            credStore,
		backend:          backend,
		programVKey:      programVKey,
		owner:            owner,
		globalExpiration: globalExpiration,
		logger:           logger,
		now:              time.Now,
	}
}

// VerifyCredential checks a proof against the registered program verification
// key and records the verified credential. Returns the content hash the proof
// committed to.
func (s *Service) VerifyCredential(ctx context.Context, publicOutputs, proof []byte) (common.Hash, error) {
	replayKey := crypto.Keccak256Hash(publicOutputs, proof)
	return s.verify(ctx, s.programVKey, replayKey, publicOutputs, proof)
}

// VerifyCredentialWithKey is VerifyCredential with a caller-supplied
// verification key, for testing and key migration. Replay and uniqueness
// semantics are identical; the replay set is namespaced by the key.
func (s *Service) VerifyCredentialWithKey(ctx context.Context, vkey, publicOutputs, proof []byte) (common.Hash, error) {
	replayKey := crypto.Keccak256Hash(customKeyNamespace, vkey, publicOutputs, proof)
	return s.verify(ctx, vkey, replayKey, publicOutputs, proof)
}

func (s *Service) verify(ctx context.Context, vkey []byte, replayKey common.Hash, publicOutputs, proof []byte) (common.Hash, error) {
	used, err := s.store.IsProofUsed(ctx, replayKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to check replay set: %w", err)
	}
	if used {
		metrics.ProofVerifications.WithLabelValues("replay").Inc()
		return common.Hash{}, apperrors.ConflictError(ErrProofAlreadyUsed, "proof already used")
	}

	// Trust boundary: the external proving system. Every failure mode
	// collapses to a single rejection condition.
	start := s.now()
	if err := s.backend.VerifyProof(ctx, vkey, publicOutputs, proof); err != nil {
		metrics.ProofVerifications.WithLabelValues("invalid_proof").Inc()
		s.logger.Debug("proof rejected by backend", zap.Error(err))
		return common.Hash{}, apperrors.BadRequestError(ErrProofVerificationFailed, "proof verification failed")
	}
	metrics.ProofVerificationDuration.Observe(s.now().Sub(start).Seconds())

	outputs, err := zkproof.Decode(publicOutputs)
	if err != nil {
		metrics.ProofVerifications.WithLabelValues("invalid_outputs").Inc()
		return common.Hash{}, apperrors.BadRequestError(ErrInvalidPublicValues, err.Error())
	}
	if outputs.Subject == (common.Address{}) {
		metrics.ProofVerifications.WithLabelValues("invalid_outputs").Inc()
		return common.Hash{}, apperrors.BadRequestError(ErrInvalidPublicValues, "zero subject address")
	}

	if _, err := s.store.GetRecord(ctx, outputs.ContentHash); err == nil {
		metrics.ProofVerifications.WithLabelValues("duplicate_hash").Inc()
		return common.Hash{}, apperrors.ConflictError(ErrCredentialAlreadyVerified, "content hash already verified")
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return common.Hash{}, fmt.Errorf("failed to check content hash: %w", err)
	}

	if err := s.store.MarkProofUsed(ctx, replayKey); err != nil {
		if errors.Is(err, store.ErrProofUsed) {
			metrics.ProofVerifications.WithLabelValues("replay").Inc()
			return common.Hash{}, apperrors.ConflictError(ErrProofAlreadyUsed, "proof already used")
		}
		return common.Hash{}, fmt.Errorf("failed to mark proof used: %w", err)
	}

	rec := &verifier.Record{
		ContentHash:    outputs.ContentHash,
		Subject:        outputs.Subject,
		CredentialType: outputs.CredentialType,
		IssuedAt:       outputs.IssuedAt,
		ExpiresAt:      outputs.ExpiresAt,
		VerifiedAt:     s.now(),
		Valid:          true,
	}
	if err := s.store.PutRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrRecordExists) {
			metrics.ProofVerifications.WithLabelValues("duplicate_hash").Inc()
			return common.Hash{}, apperrors.ConflictError(ErrCredentialAlreadyVerified, "content hash already verified")
		}
		return common.Hash{}, fmt.Errorf("failed to store credential record: %w", err)
	}

	metrics.ProofVerifications.WithLabelValues("verified").Inc()
	s.logger.Info("credential verified",
		zap.String("subject", outputs.Subject.Hex()),
		zap.String("credential_type", outputs.CredentialType.String()),
		zap.String("content_hash", outputs.ContentHash.Hex()))
	return outputs.ContentHash, nil
}

// GetCredential returns the verified-credential record for a content hash.
func (s *Service) GetCredential(ctx context.Context, contentHash common.Hash) (*verifier.Record, error) {
	rec, err := s.store.GetRecord(ctx, contentHash)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrCredentialNotFound, "credential not found")
		}
		return nil, fmt.Errorf("failed to load credential record: %w", err)
	}
	return rec, nil
}

// SubjectCredentials returns the content hashes verified for a subject, in
// verification order.
func (s *Service) SubjectCredentials(ctx context.Context, subject common.Address) ([]common.Hash, error) {
	return s.store.SubjectCredentials(ctx, subject)
}

// IsCredentialValid reports whether a credential is still marked valid, not
// revoked, and not expired. Expiry is the earlier of the credential's own
// expiresAt and the operator's global window measured from verification time.
// An unknown content hash is simply invalid.
func (s *Service) IsCredentialValid(ctx context.Context, contentHash common.Hash) (bool, error) {
	rec, err := s.store.GetRecord(ctx, contentHash)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load credential record: %w", err)
	}
	if !rec.Valid {
		return false, nil
	}

	now := s.now()
	if rec.Expired(now) {
		return false, nil
	}
	if s.globalExpiration > 0 && now.After(rec.VerifiedAt.Add(s.globalExpiration)) {
		return false, nil
	}
	return true, nil
}

// HasValidCredentialOfType scans the subject's credential list for a valid,
// unexpired credential of the given type. Only the credential's own expiresAt
// applies here, not the global window.
func (s *Service) HasValidCredentialOfType(ctx context.Context, subject common.Address, credType credential.Type) (bool, error) {
	hashes, err := s.store.SubjectCredentials(ctx, subject)
	if err != nil {
		return false, fmt.Errorf("failed to load subject credentials: %w", err)
	}

	now := s.now()
	for _, h := range hashes {
		rec, err := s.store.GetRecord(ctx, h)
		if err != nil {
			continue
		}
		if rec.CredentialType != credType || !rec.Valid || rec.Expired(now) {
			continue
		}
		return true, nil
	}
	return false, nil
}

// RevokeCredential permanently flips a credential invalid. Owner only, and
// irreversible. Badge revocation is a separate concern; callers wanting full
// invalidation must revoke the badge too.
func (s *Service) RevokeCredential(ctx context.Context, caller common.Address, contentHash common.Hash) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(ErrNotOwner, "caller is not the verifier owner")
	}

	rec, err := s.store.GetRecord(ctx, contentHash)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return apperrors.ResourceNotFoundError(ErrCredentialNotFound, "credential not found")
		}
		return fmt.Errorf("failed to load credential record: %w", err)
	}
	if !rec.Valid {
		return apperrors.ConflictError(nil, "credential already revoked")
	}

	if err := s.store.SetInvalid(ctx, contentHash); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}

	s.logger.Info("credential revoked",
		zap.String("content_hash", contentHash.Hex()),
		zap.String("subject", rec.Subject.Hex()))
	return nil
}
