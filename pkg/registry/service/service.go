package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/internal/metrics"
	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/identity"
	"github.com/harborfin/compliance-middleware/pkg/registry"
	"github.com/harborfin/compliance-middleware/pkg/registry/store"
)

var (
	ErrNotAgent      = errors.New("caller is not a registry agent")
	ErrNotRegistered = errors.New("wallet is not registered")
)

// IdentityReader is the slice of the identity service the registry needs
// during verification.
type IdentityReader interface {
	ClaimIDsByTopic(ctx context.Context, addr common.Address, topic uint64) ([]common.Hash, error)
	GetClaim(ctx context.Context, addr common.Address, claimID common.Hash) (*identity.Claim, error)
}

// ClaimValidator is the issuer-side validity check. Calls cross a trust
// boundary (the issuer controls its own key set), so the registry treats
// every error from it as "this candidate claim fails", never as a
// registry-wide failure.
type ClaimValidator interface {
	IsClaimValid(ctx context.Context, issuerAddr, subject common.Address, topic uint64, signature, data []byte) (bool, error)
}

// TopicDirectory supplies the required claim-topic set.
type TopicDirectory interface {
	RequiredTopics(ctx context.Context) ([]uint64, error)
}

// IssuerDirectory supplies per-topic issuer trust.
type IssuerDirectory interface {
	TrustedIssuersForTopic(ctx context.Context, topic uint64) ([]common.Address, error)
	IsTrustedForTopic(ctx context.Context, issuer common.Address, topic uint64) (bool, error)
}

// Service is the identity registry: agent-gated binding lifecycle plus the
// pure-read verification algorithm.
type Service struct {
	storage    store.Storage
	identities IdentityReader
	validator  ClaimValidator
	topics     TopicDirectory
	issuers    IssuerDirectory

	owner  common.Address
	agents map[common.Address]struct{}

	logger *zap.Logger
}

// NewService creates a new identity registry service
func NewService(
	storage store.Storage,
	identities IdentityReader,
	validator ClaimValidator,
	topics TopicDirectory,
	issuers IssuerDirectory,
	owner common.Address,
	agents []common.Address,
	logger *zap.Logger,
) *Service {
	agentSet := make(map[common.Address]struct{}, len(agents))
	for _, a := range agents {
		agentSet[a] = struct{}{}
	}
	return &Service{
		storage:    storage,
		identities: identities,
		validator:  validator,
		topics:     topics,
		issuers:    issuers,
		owner:      owner,
		agents:     agentSet,
		logger:     logger,
	}
}

// AddAgent authorizes an address to manage bindings. Owner only.
func (s *Service) AddAgent(caller, agent common.Address) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the registry owner")
	}
	s.agents[agent] = struct{}{}
	return nil
}

// RegisterIdentity binds a wallet to an identity and country. Agent-gated.
func (s *Service) RegisterIdentity(ctx context.Context, caller, wallet, identityAddr common.Address, country uint16) error {
	if err := s.requireAgent(caller); err != nil {
		return err
	}
	if wallet == (common.Address{}) || identityAddr == (common.Address{}) {
		return apperrors.BadRequestError(nil, "zero address")
	}

	b := &registry.Binding{Wallet: wallet, Identity: identityAddr, Country: country}
	if err := s.storage.Bind(ctx, b); err != nil {
		if errors.Is(err, store.ErrBindingExists) {
			return apperrors.ConflictError(err, "wallet already registered")
		}
		return fmt.Errorf("failed to register identity: %w", err)
	}

	s.logger.Info("identity registered",
		zap.String("wallet", wallet.Hex()),
		zap.String("identity", identityAddr.Hex()),
		zap.Uint16("country", country))
	return nil
}

// BatchRegisterIdentity registers several bindings in one call. Arrays must
// be of equal length; entries are applied independently and the first
// failure aborts the remainder.
func (s *Service) BatchRegisterIdentity(ctx context.Context, caller common.Address, wallets, identityAddrs []common.Address, countries []uint16) error {
	if len(wallets) != len(identityAddrs) || len(wallets) != len(countries) {
		return apperrors.BadRequestError(nil, "mismatched batch array lengths")
	}
	for i := range wallets {
		if err := s.RegisterIdentity(ctx, caller, wallets[i], identityAddrs[i], countries[i]); err != nil {
			return fmt.Errorf("batch entry %d: %w", i, err)
		}
	}
	return nil
}

// UpdateIdentity rebinds a wallet to a different identity. Agent-gated;
// fails if the wallet is not registered.
func (s *Service) UpdateIdentity(ctx context.Context, caller, wallet, identityAddr common.Address) error {
	if err := s.requireAgent(caller); err != nil {
		return err
	}

	b, err := s.getBinding(ctx, wallet)
	if err != nil {
		return err
	}
	b.Identity = identityAddr
	if err := s.storage.Update(ctx, b); err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}

	s.logger.Info("identity updated",
		zap.String("wallet", wallet.Hex()),
		zap.String("identity", identityAddr.Hex()))
	return nil
}

// UpdateCountry changes the country of a registered wallet. Agent-gated.
func (s *Service) UpdateCountry(ctx context.Context, caller, wallet common.Address, country uint16) error {
	if err := s.requireAgent(caller); err != nil {
		return err
	}

	b, err := s.getBinding(ctx, wallet)
	if err != nil {
		return err
	}
	b.Country = country
	if err := s.storage.Update(ctx, b); err != nil {
		return fmt.Errorf("failed to update country: %w", err)
	}

	s.logger.Info("investor country updated",
		zap.String("wallet", wallet.Hex()),
		zap.Uint16("country", country))
	return nil
}

// DeleteIdentity removes a wallet's binding. Agent-gated; fails if the
// wallet is not registered.
func (s *Service) DeleteIdentity(ctx context.Context, caller, wallet common.Address) error {
	if err := s.requireAgent(caller); err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, wallet); err != nil {
		if errors.Is(err, store.ErrBindingNotFound) {
			return apperrors.ResourceNotFoundError(ErrNotRegistered, "wallet is not registered")
		}
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	s.logger.Info("identity deleted", zap.String("wallet", wallet.Hex()))
	return nil
}

// Contains reports whether a wallet has a binding.
func (s *Service) Contains(ctx context.Context, wallet common.Address) (bool, error) {
	return s.storage.Contains(ctx, wallet)
}

// IdentityOf returns the identity bound to a wallet.
func (s *Service) IdentityOf(ctx context.Context, wallet common.Address) (common.Address, error) {
	b, err := s.getBinding(ctx, wallet)
	if err != nil {
		return common.Address{}, err
	}
	return b.Identity, nil
}

// InvestorCountry returns the country code of a registered wallet.
func (s *Service) InvestorCountry(ctx context.Context, wallet common.Address) (uint16, error) {
	b, err := s.getBinding(ctx, wallet)
	if err != nil {
		return 0, err
	}
	return b.Country, nil
}

// IsVerified decides whether a wallet's identity satisfies every required
// claim topic. Pure read; always resolves to a boolean. The rule is AND
// across required topics, OR across candidate claims within a topic:
//
//  1. no binding -> false
//  2. empty required-topic set -> true (identity existence suffices)
//  3. per topic: some claim must (a) carry the topic, (b) come from an
//     issuer trusted for that specific topic, and (c) still be attested
//     valid by the issuer itself
//
// Issuer-side validity calls are fault-isolated: an erroring issuer fails
// that candidate claim only.
func (s *Service) IsVerified(ctx context.Context, wallet common.Address) (bool, error) {
	b, err := s.storage.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, store.ErrBindingNotFound) {
			metrics.VerificationChecks.WithLabelValues("unregistered").Inc()
			return false, nil
		}
		return false, fmt.Errorf("failed to load binding: %w", err)
	}

	required, err := s.topics.RequiredTopics(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load required topics: %w", err)
	}
	if len(required) == 0 {
		metrics.VerificationChecks.WithLabelValues("verified").Inc()
		return true, nil
	}

	for _, topic := range required {
		ok, err := s.topicSatisfied(ctx, b.Identity, topic)
		if err != nil {
			return false, err
		}
		if !ok {
			metrics.VerificationChecks.WithLabelValues("unverified").Inc()
			return false, nil
		}
	}

	metrics.VerificationChecks.WithLabelValues("verified").Inc()
	return true, nil
}

func (s *Service) topicSatisfied(ctx context.Context, identityAddr common.Address, topic uint64) (bool, error) {
	trusted, err := s.issuers.TrustedIssuersForTopic(ctx, topic)
	if err != nil {
		return false, fmt.Errorf("failed to load trusted issuers: %w", err)
	}
	if len(trusted) == 0 {
		// Nobody can attest this topic, so nobody can satisfy it.
		return false, nil
	}

	claimIDs, err := s.identities.ClaimIDsByTopic(ctx, identityAddr, topic)
	if err != nil {
		// A missing or unreadable identity holds no satisfying claims.
		return false, nil
	}

	for _, claimID := range claimIDs {
		claim, err := s.identities.GetClaim(ctx, identityAddr, claimID)
		if err != nil {
			continue
		}
		if claim.Topic != topic {
			continue
		}

		trustedForTopic, err := s.issuers.IsTrustedForTopic(ctx, claim.Issuer, topic)
		if err != nil || !trustedForTopic {
			continue
		}

		// Trust boundary: the issuer's own validity check. Errors fail
		// the candidate, not the verification call.
		valid, err := s.validator.IsClaimValid(ctx, claim.Issuer, identityAddr, topic, claim.Signature, claim.Data)
		if err != nil {
			s.logger.Debug("issuer validity check failed",
				zap.String("issuer", claim.Issuer.Hex()),
				zap.Uint64("topic", topic),
				zap.Error(err))
			continue
		}
		if valid {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) getBinding(ctx context.Context, wallet common.Address) (*registry.Binding, error) {
	b, err := s.storage.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, store.ErrBindingNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrNotRegistered, "wallet is not registered")
		}
		return nil, fmt.Errorf("failed to load binding: %w", err)
	}
	return b, nil
}

func (s *Service) requireAgent(caller common.Address) error {
	if caller == s.owner {
		return nil
	}
	if _, ok := s.agents[caller]; ok {
		return nil
	}
	return apperrors.ForbiddenError(ErrNotAgent, "caller is not a registry agent")
}
