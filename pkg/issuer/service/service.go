package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/auth"
	"github.com/harborfin/compliance-middleware/pkg/identity"
	"github.com/harborfin/compliance-middleware/pkg/issuer"
	"github.com/harborfin/compliance-middleware/pkg/issuer/store"
	"github.com/harborfin/compliance-middleware/pkg/zkproof"
)

var ErrNotIssuerKeyHolder = errors.New("caller holds neither a management nor a claim-signer key on the issuer")

// IdentityReader is the slice of the identity service the claim issuer
// needs: key-purpose lookups on the issuer's own identity and claim lookups
// for revocation by claim id.
type IdentityReader interface {
	KeyHasPurpose(ctx context.Context, addr common.Address, keyID common.Hash, purpose identity.KeyPurpose) (bool, error)
	GetClaim(ctx context.Context, addr common.Address, claimID common.Hash) (*identity.Claim, error)
}

// Service implements issuer-side claim authentication. Claim validity is
// dynamic: it depends on the revocation set and on the signing key still
// holding claim-signer purpose on the issuer's identity, not on the claim
// record itself.
type Service struct {
	identities  IdentityReader
	revocations store.RevocationStore
	backend     zkproof.Backend
	programVKey []byte
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a new claim issuer service. backend and programVKey
// configure the optional zero-knowledge claim path and may be nil when only
// direct signatures are used.
func NewService(
	identities IdentityReader,
	revocations store.RevocationStore,
	backend zkproof.Backend,
	programVKey []byte,
	logger *zap.Logger,
) *Service {
	return &Service{
		identities:  identities,
		revocations: revocations,
		backend:     backend,
		programVKey: programVKey,
		logger:      logger,
		now:         time.Now,
	}
}

// IsClaimValid reports whether a claim signature is currently acceptable
// evidence from this issuer:
//   - the exact signature bytes have not been revoked,
//   - the signature recovers to a key that presently holds claim-signer
//     purpose on the issuer's own identity.
//
// It never returns an error for verification failures; faults from the
// stores are surfaced so the caller can decide whether to downgrade them.
func (s *Service) IsClaimValid(ctx context.Context, issuerAddr, subject common.Address, topic uint64, signature, data []byte) (bool, error) {
	revoked, err := s.revocations.IsRevoked(ctx, issuerAddr, issuer.SignatureHash(signature))
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return false, nil
	}

	digest := issuer.ClaimDigest(subject, topic, data)
	signer, err := auth.RecoverPrefixedHash(digest, signature)
	if err != nil {
		// Malformed signature bytes are an invalid claim, not a fault.
		return false, nil
	}

	ok, err := s.identities.KeyHasPurpose(ctx, issuerAddr, identity.AddressKeyID(signer), identity.PurposeClaimSigner)
	if err != nil {
		return false, fmt.Errorf("failed to check signer key: %w", err)
	}
	return ok, nil
}

// RevokeClaimBySignature permanently revokes the exact signature bytes.
// Re-revoking an already-revoked signature is an error, not a no-op. The
// caller must hold a management or claim-signer key on the issuer identity.
func (s *Service) RevokeClaimBySignature(ctx context.Context, issuerAddr, caller common.Address, signature []byte) error {
	if err := s.requireIssuerKey(ctx, issuerAddr, caller); err != nil {
		return err
	}

	if err := s.revocations.Revoke(ctx, issuerAddr, issuer.SignatureHash(signature)); err != nil {
		if errors.Is(err, store.ErrAlreadyRevoked) {
			return apperrors.ConflictError(err, "signature already revoked")
		}
		return fmt.Errorf("failed to revoke signature: %w", err)
	}

	s.logger.Info("claim signature revoked", zap.String("issuer", issuerAddr.Hex()))
	return nil
}

// RevokeClaim revokes a claim by (holder identity, claim id): it looks the
// claim up on the holder and revokes its signature bytes.
func (s *Service) RevokeClaim(ctx context.Context, issuerAddr, caller, holder common.Address, claimID common.Hash) error {
	claim, err := s.identities.GetClaim(ctx, holder, claimID)
	if err != nil {
		return err
	}
	if claim.Issuer != issuerAddr {
		return apperrors.BadRequestError(nil, "claim was not issued by this issuer")
	}
	return s.RevokeClaimBySignature(ctx, issuerAddr, caller, claim.Signature)
}

// IsClaimValidWithZKProof accepts a zero-knowledge proof in place of a
// direct signature. The proof's public outputs must name the queried subject
// and topic and must not be expired; cryptographic verification is delegated
// to the external backend. Every failure, including backend faults, yields
// "invalid" - this path never propagates an error.
func (s *Service) IsClaimValidWithZKProof(ctx context.Context, subject common.Address, topic uint64, publicOutputs, proof []byte) bool {
	if s.backend == nil || len(s.programVKey) == 0 {
		return false
	}

	outputs, err := zkproof.Decode(publicOutputs)
	if err != nil {
		return false
	}
	if outputs.Subject != subject {
		return false
	}
	if uint64(outputs.CredentialType) != topic {
		return false
	}
	if outputs.ExpiresAt != 0 && s.now().Unix() >= int64(outputs.ExpiresAt) {
		return false
	}

	if err := s.backend.VerifyProof(ctx, s.programVKey, publicOutputs, proof); err != nil {
		s.logger.Debug("zk claim proof rejected", zap.Error(err))
		return false
	}
	return true
}

func (s *Service) requireIssuerKey(ctx context.Context, issuerAddr, caller common.Address) error {
	keyID := identity.AddressKeyID(caller)
	mgmt, err := s.identities.KeyHasPurpose(ctx, issuerAddr, keyID, identity.PurposeManagement)
	if err != nil {
		return err
	}
	if mgmt {
		return nil
	}
	signer, err := s.identities.KeyHasPurpose(ctx, issuerAddr, keyID, identity.PurposeClaimSigner)
	if err != nil {
		return err
	}
	if signer {
		return nil
	}
	return apperrors.ForbiddenError(ErrNotIssuerKeyHolder, "not authorized to revoke claims")
}
