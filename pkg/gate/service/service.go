package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/internal/metrics"
	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/credential"
	"github.com/harborfin/compliance-middleware/pkg/gate"
	"github.com/harborfin/compliance-middleware/pkg/gate/store"
)

var (
	ErrVenueNotWhitelisted = errors.New("venue is not whitelisted")
	ErrNotVenue            = errors.New("caller is not the venue")
)

// VerificationReader is the slice of the identity registry the gate needs.
type VerificationReader interface {
	IsVerified(ctx context.Context, wallet common.Address) (bool, error)
}

// BadgeChecker is the slice of the badge layer the gate needs.
type BadgeChecker interface {
	HasValidCredential(ctx context.Context, holder common.Address, credType credential.Type) (bool, error)
}

// Service is the investment gate: CanInvest is a pure decision, and only the
// venue itself may write the position log the decision reads.
type Service struct {
	mu sync.RWMutex

	positions store.PositionStore
	registry  VerificationReader
	badges    BadgeChecker

	owner     common.Address
	venues    map[common.Address]*gate.Venue
	overrides map[common.Address]struct{}

	requireVerification bool
	requireCredentials  bool

	logger *zap.Logger
}

// NewService creates a new investment gate service.
func NewService(
	positions store.PositionStore,
	registry VerificationReader,
	badges BadgeChecker,
	owner common.Address,
	requireVerification, requireCredentials bool,
	logger *zap.Logger,
) *Service {
	return &Service{
		positions:           positions,
		registry:            registry,
		badges:              badges,
		owner:               owner,
		venues:              make(map[common.Address]*gate.Venue),
		overrides:           make(map[common.Address]struct{}),
		requireVerification: requireVerification,
		requireCredentials:  requireCredentials,
		logger:              logger,
	}
}

// AddVenue whitelists a venue with its admission policy. Owner only.
func (s *Service) AddVenue(caller common.Address, v *gate.Venue) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the gate owner")
	}
	if v.Address == (common.Address{}) {
		return apperrors.BadRequestError(nil, "zero venue address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.venues[v.Address]; ok {
		return apperrors.ConflictError(nil, "venue already whitelisted")
	}
	cp := *v
	cp.RequiredBadgeTypes = append([]credential.Type(nil), v.RequiredBadgeTypes...)
	s.venues[v.Address] = &cp

	s.logger.Info("venue whitelisted", zap.String("venue", v.Address.Hex()))
	return nil
}

// UpdateVenue replaces a whitelisted venue's policy. Owner only.
func (s *Service) UpdateVenue(caller common.Address, v *gate.Venue) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the gate owner")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.venues[v.Address]; !ok {
		return apperrors.ResourceNotFoundError(ErrVenueNotWhitelisted, "venue is not whitelisted")
	}
	cp := *v
	cp.RequiredBadgeTypes = append([]credential.Type(nil), v.RequiredBadgeTypes...)
	s.venues[v.Address] = &cp
	return nil
}

// RemoveVenue drops a venue from the whitelist. Owner only. Recorded
// positions survive removal.
func (s *Service) RemoveVenue(caller, venue common.Address) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the gate owner")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.venues[venue]; !ok {
		return apperrors.ResourceNotFoundError(ErrVenueNotWhitelisted, "venue is not whitelisted")
	}
	delete(s.venues, venue)

	s.logger.Info("venue removed", zap.String("venue", venue.Hex()))
	return nil
}

// AddOverride puts an investor on the global override allowlist, which
// bypasses every check except the venue whitelist. Owner only.
func (s *Service) AddOverride(caller, investor common.Address) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the gate owner")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[investor] = struct{}{}
	return nil
}

// RemoveOverride removes an investor from the override allowlist. Owner
// only.
func (s *Service) RemoveOverride(caller, investor common.Address) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the gate owner")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, investor)
	return nil
}

// CanInvest decides whether an investor may invest the given amount at a
// venue. Pure read; the reason names the first failing check.
func (s *Service) CanInvest(ctx context.Context, investor, venue common.Address, amount decimal.Decimal) (bool, string, error) {
	s.mu.RLock()
	v, whitelisted := s.venues[venue]
	_, overridden := s.overrides[investor]
	s.mu.RUnlock()

	if !whitelisted {
		return s.decide(false, gate.ReasonVenueNotWhitelisted), gate.ReasonVenueNotWhitelisted, nil
	}
	if overridden {
		return s.decide(true, gate.ReasonOverride), gate.ReasonOverride, nil
	}

	if s.requireVerification {
		verified, err := s.registry.IsVerified(ctx, investor)
		if err != nil {
			return false, "", fmt.Errorf("failed to check verification: %w", err)
		}
		if !verified {
			return s.decide(false, gate.ReasonNotVerified), gate.ReasonNotVerified, nil
		}
	}

	if s.requireCredentials {
		for _, credType := range v.RequiredBadgeTypes {
			has, err := s.badges.HasValidCredential(ctx, investor, credType)
			if err != nil {
				return false, "", fmt.Errorf("failed to check badge: %w", err)
			}
			if !has {
				return s.decide(false, gate.ReasonMissingBadge), gate.ReasonMissingBadge, nil
			}
		}
	}

	position, err := s.positions.Position(ctx, venue, investor)
	if err != nil {
		return false, "", fmt.Errorf("failed to load position: %w", err)
	}
	total := position.Add(amount)
	if v.MinInvestment.IsPositive() && total.LessThan(v.MinInvestment) {
		return s.decide(false, gate.ReasonBelowMinimum), gate.ReasonBelowMinimum, nil
	}
	if v.MaxInvestment.IsPositive() && total.GreaterThan(v.MaxInvestment) {
		return s.decide(false, gate.ReasonAboveMaximum), gate.ReasonAboveMaximum, nil
	}

	return s.decide(true, gate.ReasonOK), gate.ReasonOK, nil
}

// RecordInvestment adds an amount to the investor's position. Only the venue
// itself may report its investments.
func (s *Service) RecordInvestment(ctx context.Context, caller, venue, investor common.Address, amount decimal.Decimal) error {
	if err := s.requireVenue(caller, venue); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return apperrors.BadRequestError(nil, "amount must be positive")
	}

	position, err := s.positions.Position(ctx, venue, investor)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}
	if err := s.positions.SetPosition(ctx, venue, investor, position.Add(amount)); err != nil {
		return fmt.Errorf("failed to record investment: %w", err)
	}

	s.logger.Info("investment recorded",
		zap.String("venue", venue.Hex()),
		zap.String("investor", investor.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// RecordWithdrawal subtracts an amount from the investor's position. Only
// the venue itself may report its withdrawals; a withdrawal past zero is a
// reporting error.
func (s *Service) RecordWithdrawal(ctx context.Context, caller, venue, investor common.Address, amount decimal.Decimal) error {
	if err := s.requireVenue(caller, venue); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return apperrors.BadRequestError(nil, "amount must be positive")
	}

	position, err := s.positions.Position(ctx, venue, investor)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}
	if amount.GreaterThan(position) {
		return apperrors.BadRequestError(nil, "withdrawal exceeds recorded position")
	}
	if err := s.positions.SetPosition(ctx, venue, investor, position.Sub(amount)); err != nil {
		return fmt.Errorf("failed to record withdrawal: %w", err)
	}

	s.logger.Info("withdrawal recorded",
		zap.String("venue", venue.Hex()),
		zap.String("investor", investor.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// Position returns the investor's cumulative recorded position at a venue.
func (s *Service) Position(ctx context.Context, venue, investor common.Address) (decimal.Decimal, error) {
	return s.positions.Position(ctx, venue, investor)
}

func (s *Service) requireVenue(caller, venue common.Address) error {
	s.mu.RLock()
	_, whitelisted := s.venues[venue]
	s.mu.RUnlock()

	if !whitelisted {
		return apperrors.ResourceNotFoundError(ErrVenueNotWhitelisted, "venue is not whitelisted")
	}
	if caller != venue {
		return apperrors.ForbiddenError(ErrNotVenue, "caller is not the venue")
	}
	return nil
}

func (s *Service) decide(allowed bool, reason string) bool {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	metrics.GateDecisions.WithLabelValues(outcome, reason).Inc()
	return allowed
}
