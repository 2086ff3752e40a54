package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/internal/metrics"
	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/badge"
	"github.com/harborfin/compliance-middleware/pkg/badge/store"
	"github.com/harborfin/compliance-middleware/pkg/credential"
)

var (
	ErrNotMinter               = errors.New("caller is not an authorized minter")
	ErrCredentialAlreadyExists = errors.New("content hash already bound to a badge")
	ErrNonTransferable         = errors.New("credential badges are non-transferable")
	ErrBadgeNotFound           = errors.New("badge not found")
)

// CredentialRevoker is the slice of the proof verifier used by
// RevokeWithCredential. Badge and verifier revocation are independent; this
// is only a convenience to do both in one call.
type CredentialRevoker interface {
	RevokeCredential(ctx context.Context, caller common.Address, contentHash common.Hash) error
}

// MintRequest is one entry of a batch mint.
type MintRequest struct {
	Holder         common.Address
	CredentialType credential.Type
	ContentHash    common.Hash
	ExpiresAt      uint64
	MetadataRef    string
}

// BatchResult reports the per-entry outcome of a batch mint. Entries are
// independent; a failed entry does not roll back its siblings.
type BatchResult struct {
	BadgeID uint64
	Err     error
}

// Service is the credential badge registry. Badges are soulbound: the only
// legal transitions are mint (from null) and burn (to null).
type Service struct {
	store       store.Store
	credentials CredentialRevoker

	owner   common.Address
	minters map[common.Address]struct{}

	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new badge service. credentials may be nil when the
// deployment does not wire the proof verifier.
func NewService(badgeStore store.Store, credentials CredentialRevoker, owner common.Address, logger *zap.Logger) *Service {
	return &Service{
		store:       badgeStore,
		credentials: credentials,
		owner:       owner,
		minters:     make(map[common.Address]struct{}),
		logger:      logger,
		now:         time.Now,
	}
}

// AddMinter authorizes an address to mint badges. Owner only.
func (s *Service) AddMinter(caller, minter common.Address) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the badge owner")
	}
	s.minters[minter] = struct{}{}
	return nil
}

// RemoveMinter withdraws minting authorization. Owner only.
func (s *Service) RemoveMinter(caller, minter common.Address) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the badge owner")
	}
	delete(s.minters, minter)
	return nil
}

// MintCredential mints a badge for (holder, type). If the holder already has
// a live badge of this type it is retired first; a content hash already bound
// to a live badge can never mint a second one.
func (s *Service) MintCredential(ctx context.Context, caller, holder common.Address, credType credential.Type, contentHash common.Hash, expiresAt uint64, metadataRef string) (uint64, error) {
	if err := s.requireMinter(caller); err != nil {
		return 0, err
	}
	if holder == (common.Address{}) {
		return 0, apperrors.BadRequestError(nil, "zero holder address")
	}
	if credType == 0 {
		return 0, apperrors.BadRequestError(nil, "zero credential type")
	}

	if _, err := s.store.ByContentHash(ctx, contentHash); err == nil {
		return 0, apperrors.ConflictError(ErrCredentialAlreadyExists, "content hash already bound to a badge")
	} else if !errors.Is(err, store.ErrBadgeNotFound) {
		return 0, fmt.Errorf("failed to check content hash: %w", err)
	}

	// Replace semantics: a live badge of the same type is burned before the
	// new one exists, so the (holder, type) slot never holds two badges.
	if old, err := s.store.ByHolderType(ctx, holder, credType); err == nil {
		if err := s.store.Delete(ctx, old.ID); err != nil {
			return 0, fmt.Errorf("failed to retire previous badge: %w", err)
		}
		s.logger.Info("badge retired on re-mint",
			zap.Uint64("badge_id", old.ID),
			zap.String("holder", holder.Hex()))
	} else if !errors.Is(err, store.ErrBadgeNotFound) {
		return 0, fmt.Errorf("failed to check existing badge: %w", err)
	}

	id, err := s.store.NextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate badge id: %w", err)
	}
	b := &badge.Badge{
		ID:             id,
		Holder:         holder,
		CredentialType: credType,
		ContentHash:    contentHash,
		IssuedAt:       s.now(),
		ExpiresAt:      expiresAt,
		MetadataRef:    metadataRef,
	}
	if err := s.store.Put(ctx, b); err != nil {
		if errors.Is(err, store.ErrContentHashUsed) {
			return 0, apperrors.ConflictError(ErrCredentialAlreadyExists, "content hash already bound to a badge")
		}
		return 0, fmt.Errorf("failed to store badge: %w", err)
	}

	metrics.BadgesMinted.WithLabelValues(credType.String()).Inc()
	s.logger.Info("badge minted",
		zap.Uint64("badge_id", id),
		zap.String("holder", holder.Hex()),
		zap.String("credential_type", credType.String()),
		zap.String("content_hash", contentHash.Hex()))
	return id, nil
}

// BatchMintCredentials mints several badges in one call, best-effort per
// entry: each entry succeeds or fails on its own.
func (s *Service) BatchMintCredentials(ctx context.Context, caller common.Address, reqs []MintRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	for i, req := range reqs {
		id, err := s.MintCredential(ctx, caller, req.Holder, req.CredentialType, req.ContentHash, req.ExpiresAt, req.MetadataRef)
		results[i] = BatchResult{BadgeID: id, Err: err}
	}
	return results
}

// RevokeBadge burns a badge. Minter-gated; independent of proof-verifier
// revocation.
func (s *Service) RevokeBadge(ctx context.Context, caller common.Address, badgeID uint64) error {
	if err := s.requireMinter(caller); err != nil {
		return err
	}

	b, err := s.store.Get(ctx, badgeID)
	if err != nil {
		if errors.Is(err, store.ErrBadgeNotFound) {
			return apperrors.ResourceNotFoundError(ErrBadgeNotFound, "badge not found")
		}
		return fmt.Errorf("failed to load badge: %w", err)
	}
	if err := s.store.Delete(ctx, badgeID); err != nil {
		return fmt.Errorf("failed to burn badge: %w", err)
	}

	s.logger.Info("badge revoked",
		zap.Uint64("badge_id", badgeID),
		zap.String("holder", b.Holder.Hex()))
	return nil
}

// RevokeWithCredential burns a badge and revokes the backing
// verified-credential record in one call. The two registries stay otherwise
// unsynchronized.
func (s *Service) RevokeWithCredential(ctx context.Context, caller common.Address, badgeID uint64) error {
	b, err := s.store.Get(ctx, badgeID)
	if err != nil {
		if errors.Is(err, store.ErrBadgeNotFound) {
			return apperrors.ResourceNotFoundError(ErrBadgeNotFound, "badge not found")
		}
		return fmt.Errorf("failed to load badge: %w", err)
	}

	if err := s.RevokeBadge(ctx, caller, badgeID); err != nil {
		return err
	}
	if s.credentials == nil {
		return nil
	}
	if err := s.credentials.RevokeCredential(ctx, caller, b.ContentHash); err != nil {
		return fmt.Errorf("badge burned but credential revocation failed: %w", err)
	}
	return nil
}

// Transfer always fails: badges move only from null (mint) or to null
// (burn), never between holders.
func (s *Service) Transfer(ctx context.Context, caller, from, to common.Address, badgeID uint64) error {
	return apperrors.ForbiddenError(ErrNonTransferable, "credential badges are non-transferable")
}

// HasValidCredential reports whether the holder has a live, unexpired badge
// of the given type.
func (s *Service) HasValidCredential(ctx context.Context, holder common.Address, credType credential.Type) (bool, error) {
	b, err := s.store.ByHolderType(ctx, holder, credType)
	if err != nil {
		if errors.Is(err, store.ErrBadgeNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load badge: %w", err)
	}
	return !b.Expired(s.now()), nil
}

// GetBadge returns a badge by id.
func (s *Service) GetBadge(ctx context.Context, badgeID uint64) (*badge.Badge, error) {
	b, err := s.store.Get(ctx, badgeID)
	if err != nil {
		if errors.Is(err, store.ErrBadgeNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrBadgeNotFound, "badge not found")
		}
		return nil, fmt.Errorf("failed to load badge: %w", err)
	}
	return b, nil
}

// HolderBadges returns all live badges of a holder, ordered by id.
func (s *Service) HolderBadges(ctx context.Context, holder common.Address) ([]*badge.Badge, error) {
	return s.store.HolderBadges(ctx, holder)
}

func (s *Service) requireMinter(caller common.Address) error {
	if caller == s.owner {
		return nil
	}
	if _, ok := s.minters[caller]; ok {
		return nil
	}
	return apperrors.ForbiddenError(ErrNotMinter, "caller is not an authorized minter")
}
