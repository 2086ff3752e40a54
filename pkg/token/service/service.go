package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/token/store"
)

var (
	ErrRecipientNotVerified = errors.New("recipient is not verified")
	ErrTransferNotCompliant = errors.New("transfer rejected by compliance")
	ErrInsufficientBalance  = errors.New("insufficient balance")
)

// VerificationReader is the slice of the identity registry the token needs.
type VerificationReader interface {
	IsVerified(ctx context.Context, wallet common.Address) (bool, error)
}

// ComplianceEngine is the compliance instance this token is bound to. The
// token passes its own address as caller on the notification hooks.
type ComplianceEngine interface {
	CanTransfer(ctx context.Context, from, to common.Address, amount decimal.Decimal) (bool, error)
	Transferred(ctx context.Context, caller, from, to common.Address, amount decimal.Decimal) error
	Created(ctx context.Context, caller, to common.Address, amount decimal.Decimal) error
	Destroyed(ctx context.Context, caller, from common.Address, amount decimal.Decimal) error
}

// Service is the regulated asset: every balance movement runs through
// identity verification and the compliance engine before it touches the
// ledger, and reports back to the engine afterwards. The mutex serializes
// ledger transitions the way on-chain execution would.
type Service struct {
	mu sync.Mutex

	addr     common.Address
	owner    common.Address
	balances store.BalanceStore
	registry VerificationReader
	engine   ComplianceEngine

	logger *zap.Logger
}

// NewService creates a new token service. addr identifies the token to the
// compliance engine it is bound to.
func NewService(
	addr, owner common.Address,
	balances store.BalanceStore,
	registry VerificationReader,
	engine ComplianceEngine,
	logger *zap.Logger,
) *Service {
	return &Service{
		addr:     addr,
		owner:    owner,
		balances: balances,
		registry: registry,
		engine:   engine,
		logger:   logger,
	}
}

// Address returns the token's identity toward the compliance engine.
func (s *Service) Address() common.Address {
	return s.addr
}

// Transfer moves tokens between wallets. The recipient must be verified and
// every bound compliance module must allow the transfer.
func (s *Service) Transfer(ctx context.Context, from, to common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.BadRequestError(nil, "amount must be positive")
	}
	if to == (common.Address{}) {
		return apperrors.BadRequestError(nil, "zero recipient address")
	}

	if err := s.checkAdmission(ctx, from, to, amount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fromBalance, err := s.balances.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}
	if fromBalance.LessThan(amount) {
		return apperrors.BadRequestError(ErrInsufficientBalance, "insufficient balance")
	}
	toBalance, err := s.balances.Balance(ctx, to)
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	if err := s.balances.SetBalance(ctx, from, fromBalance.Sub(amount)); err != nil {
		return fmt.Errorf("failed to debit sender: %w", err)
	}
	if err := s.balances.SetBalance(ctx, to, toBalance.Add(amount)); err != nil {
		return fmt.Errorf("failed to credit recipient: %w", err)
	}

	if err := s.engine.Transferred(ctx, s.addr, from, to, amount); err != nil {
		s.logger.Warn("transfer notification failed", zap.Error(err))
	}
	s.logger.Info("transfer",
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// Mint creates tokens for a verified recipient. Owner only.
func (s *Service) Mint(ctx context.Context, caller, to common.Address, amount decimal.Decimal) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the token owner")
	}
	if !amount.IsPositive() {
		return apperrors.BadRequestError(nil, "amount must be positive")
	}
	if to == (common.Address{}) {
		return apperrors.BadRequestError(nil, "zero recipient address")
	}

	if err := s.checkAdmission(ctx, common.Address{}, to, amount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.balances.Balance(ctx, to)
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}
	if err := s.balances.SetBalance(ctx, to, balance.Add(amount)); err != nil {
		return fmt.Errorf("failed to credit recipient: %w", err)
	}

	if err := s.engine.Created(ctx, s.addr, to, amount); err != nil {
		s.logger.Warn("mint notification failed", zap.Error(err))
	}
	s.logger.Info("mint",
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// Burn destroys tokens from a wallet. Owner only; burns bypass compliance
// checks (forced exits must always be possible) but still notify the
// engine.
func (s *Service) Burn(ctx context.Context, caller, from common.Address, amount decimal.Decimal) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(nil, "caller is not the token owner")
	}
	if !amount.IsPositive() {
		return apperrors.BadRequestError(nil, "amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.balances.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}
	if balance.LessThan(amount) {
		return apperrors.BadRequestError(ErrInsufficientBalance, "insufficient balance")
	}
	if err := s.balances.SetBalance(ctx, from, balance.Sub(amount)); err != nil {
		return fmt.Errorf("failed to debit holder: %w", err)
	}

	if err := s.engine.Destroyed(ctx, s.addr, from, amount); err != nil {
		s.logger.Warn("burn notification failed", zap.Error(err))
	}
	s.logger.Info("burn",
		zap.String("from", from.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// BalanceOf returns a holder's balance.
func (s *Service) BalanceOf(ctx context.Context, holder common.Address) (decimal.Decimal, error) {
	return s.balances.Balance(ctx, holder)
}

func (s *Service) checkAdmission(ctx context.Context, from, to common.Address, amount decimal.Decimal) error {
	verified, err := s.registry.IsVerified(ctx, to)
	if err != nil {
		return fmt.Errorf("failed to check recipient verification: %w", err)
	}
	if !verified {
		return apperrors.ForbiddenError(ErrRecipientNotVerified, "recipient is not verified")
	}

	allowed, err := s.engine.CanTransfer(ctx, from, to, amount)
	if err != nil {
		return fmt.Errorf("failed to check compliance: %w", err)
	}
	if !allowed {
		return apperrors.ForbiddenError(ErrTransferNotCompliant, "transfer rejected by compliance")
	}
	return nil
}
