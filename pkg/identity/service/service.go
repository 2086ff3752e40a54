package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/identity"
	"github.com/harborfin/compliance-middleware/pkg/identity/store"
)

var (
	ErrNotManagementKey  = errors.New("caller does not hold a management key")
	ErrNotClaimAuthority = errors.New("caller is neither a management key holder nor the claim issuer")
	ErrKeyExists         = errors.New("key already holds this purpose")
	ErrKeyNotFound       = errors.New("key not found")
	ErrClaimNotFound     = errors.New("claim not found")
	ErrLastManagementKey = errors.New("cannot remove the last management key")
)

// Store is the narrow data-access interface for the identity service.
type Store interface {
	Create(ctx context.Context, id *identity.Identity) error
	Get(ctx context.Context, addr common.Address) (*identity.Identity, error)
	Save(ctx context.Context, id *identity.Identity) error
	Exists(ctx context.Context, addr common.Address) (bool, error)
}

// Service manages identity aggregates: key lifecycle and claim lifecycle,
// gated on management-key possession.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new identity service
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// CreateIdentity creates a fresh identity whose first management key is the
// given wallet. Every identity starts with at least one management key.
func (s *Service) CreateIdentity(ctx context.Context, addr, managementWallet common.Address) (*identity.Identity, error) {
	if addr == (common.Address{}) || managementWallet == (common.Address{}) {
		return nil, apperrors.BadRequestError(nil, "zero address")
	}

	keyID := identity.AddressKeyID(managementWallet)
	id := &identity.Identity{
		Address: addr,
		Keys: map[common.Hash]*identity.Key{
			keyID: {
				ID:       keyID,
				Purposes: []identity.KeyPurpose{identity.PurposeManagement},
				Type:     identity.KeyTypeECDSA,
			},
		},
		Claims: make(map[common.Hash]*identity.Claim),
	}

	if err := s.store.Create(ctx, id); err != nil {
		if errors.Is(err, store.ErrIdentityExists) {
			return nil, apperrors.ConflictError(err, "identity already exists")
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	s.logger.Info("identity created",
		zap.String("identity", addr.Hex()),
		zap.String("management_wallet", managementWallet.Hex()))
	return id, nil
}

// AddKey adds a purpose to a key, creating the key if it does not exist yet.
// Caller must hold a management key on the identity.
func (s *Service) AddKey(ctx context.Context, addr, caller common.Address, keyID common.Hash, purpose identity.KeyPurpose, keyType identity.KeyType) error {
	id, err := s.managedIdentity(ctx, addr, caller)
	if err != nil {
		return err
	}

	key, ok := id.Keys[keyID]
	if !ok {
		id.Keys[keyID] = &identity.Key{
			ID:       keyID,
			Purposes: []identity.KeyPurpose{purpose},
			Type:     keyType,
		}
	} else {
		if key.HasPurpose(purpose) {
			return apperrors.ConflictError(ErrKeyExists, "key already holds this purpose")
		}
		key.Purposes = append(key.Purposes, purpose)
	}

	return s.store.Save(ctx, id)
}

// RemoveKey removes a purpose from a key; the key itself disappears once it
// has no purposes left. Removing the last management key is rejected so the
// identity can never lock itself out.
func (s *Service) RemoveKey(ctx context.Context, addr, caller common.Address, keyID common.Hash, purpose identity.KeyPurpose) error {
	id, err := s.managedIdentity(ctx, addr, caller)
	if err != nil {
		return err
	}

	key, ok := id.Keys[keyID]
	if !ok || !key.HasPurpose(purpose) {
		return apperrors.ResourceNotFoundError(ErrKeyNotFound, "key not found")
	}

	if purpose == identity.PurposeManagement && s.managementKeyCount(id) == 1 {
		return apperrors.BadRequestError(ErrLastManagementKey, "cannot remove the last management key")
	}

	remaining := key.Purposes[:0]
	for _, p := range key.Purposes {
		if p != purpose {
			remaining = append(remaining, p)
		}
	}
	key.Purposes = remaining
	if len(key.Purposes) == 0 {
		delete(id.Keys, keyID)
	}

	return s.store.Save(ctx, id)
}

// AddClaim records a claim on the identity. A claim with the same
// (issuer, topic) pair overwrites the existing one rather than duplicating.
// The caller must hold a management key, or be the claim's issuer updating
// its own prior claim.
func (s *Service) AddClaim(ctx context.Context, addr, caller common.Address, claim identity.Claim) (common.Hash, error) {
	id, err := s.get(ctx, addr)
	if err != nil {
		return common.Hash{}, err
	}

	claim.ID = identity.ClaimID(claim.Issuer, claim.Topic)
	_, updating := id.Claims[claim.ID]
	if !s.holdsManagementKey(id, caller) {
		if !(updating && caller == claim.Issuer) {
			return common.Hash{}, apperrors.ForbiddenError(ErrNotClaimAuthority, "not authorized to add claim")
		}
	}

	c := claim
	id.Claims[claim.ID] = &c
	if err := s.store.Save(ctx, id); err != nil {
		return common.Hash{}, err
	}

	s.logger.Debug("claim added",
		zap.String("identity", addr.Hex()),
		zap.String("issuer", claim.Issuer.Hex()),
		zap.Uint64("topic", claim.Topic))
	return claim.ID, nil
}

// RemoveClaim deletes a claim. Allowed for management key holders and for
// the claim's own issuer.
func (s *Service) RemoveClaim(ctx context.Context, addr, caller common.Address, claimID common.Hash) error {
	id, err := s.get(ctx, addr)
	if err != nil {
		return err
	}

	claim, ok := id.Claims[claimID]
	if !ok {
		return apperrors.ResourceNotFoundError(ErrClaimNotFound, "claim not found")
	}

	if !s.holdsManagementKey(id, caller) && caller != claim.Issuer {
		return apperrors.ForbiddenError(ErrNotClaimAuthority, "not authorized to remove claim")
	}

	delete(id.Claims, claimID)
	return s.store.Save(ctx, id)
}

// GetIdentity returns the identity aggregate for an address.
func (s *Service) GetIdentity(ctx context.Context, addr common.Address) (*identity.Identity, error) {
	return s.get(ctx, addr)
}

// GetClaim returns one claim by id.
func (s *Service) GetClaim(ctx context.Context, addr common.Address, claimID common.Hash) (*identity.Claim, error) {
	id, err := s.get(ctx, addr)
	if err != nil {
		return nil, err
	}
	claim, ok := id.Claims[claimID]
	if !ok {
		return nil, apperrors.ResourceNotFoundError(ErrClaimNotFound, "claim not found")
	}
	return claim, nil
}

// ClaimIDsByTopic lists the claim ids an identity holds for a topic.
func (s *Service) ClaimIDsByTopic(ctx context.Context, addr common.Address, topic uint64) ([]common.Hash, error) {
	id, err := s.get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return id.ClaimIDsByTopic(topic), nil
}

// KeyHasPurpose reports whether the identity holds keyID with the purpose.
func (s *Service) KeyHasPurpose(ctx context.Context, addr common.Address, keyID common.Hash, purpose identity.KeyPurpose) (bool, error) {
	id, err := s.get(ctx, addr)
	if err != nil {
		return false, err
	}
	return id.HasKeyWithPurpose(keyID, purpose), nil
}

func (s *Service) get(ctx context.Context, addr common.Address) (*identity.Identity, error) {
	id, err := s.store.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "identity not found")
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return id, nil
}

func (s *Service) managedIdentity(ctx context.Context, addr, caller common.Address) (*identity.Identity, error) {
	id, err := s.get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !s.holdsManagementKey(id, caller) {
		return nil, apperrors.ForbiddenError(ErrNotManagementKey, "caller does not hold a management key")
	}
	return id, nil
}

func (s *Service) holdsManagementKey(id *identity.Identity, caller common.Address) bool {
	return id.HasKeyWithPurpose(identity.AddressKeyID(caller), identity.PurposeManagement)
}

func (s *Service) managementKeyCount(id *identity.Identity) int {
	n := 0
	for _, key := range id.Keys {
		if key.HasPurpose(identity.PurposeManagement) {
			n++
		}
	}
	return n
}
