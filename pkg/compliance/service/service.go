package service

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/internal/metrics"
	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/compliance"
)

var (
	ErrTokenAlreadyBound = errors.New("a token is already bound")
	ErrTokenNotBound     = errors.New("token is not bound")
	ErrNotBoundToken     = errors.New("caller is not the bound token")
	ErrModuleBound       = errors.New("module is already bound")
	ErrModuleNotBound    = errors.New("module is not bound")
	ErrModuleRefused     = errors.New("module refused binding")
)

// Engine is one compliance instance. Exactly one token may be bound at a
// time, and modules evaluate in registration order. The single mutex mirrors
// the serialized execution the rules were designed under.
type Engine struct {
	mu sync.Mutex

	// addr identifies this instance to modules holding per-instance config.
	addr  common.Address
	owner common.Address

	boundToken common.Address
	modules    []compliance.Module
	maxModules int

	logger *zap.Logger
}

// NewEngine creates a compliance engine instance.
func NewEngine(addr, owner common.Address, maxModules int, logger *zap.Logger) *Engine {
	return &Engine{
		addr:       addr,
		owner:      owner,
		maxModules: maxModules,
		logger:     logger,
	}
}

// Address returns the instance identifier modules key their config by.
func (e *Engine) Address() common.Address {
	return e.addr
}

// BindToken binds the asset this instance governs. Owner only; rebinding
// requires an explicit unbind first.
func (e *Engine) BindToken(caller, token common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return apperrors.ForbiddenError(nil, "caller is not the compliance owner")
	}
	if token == (common.Address{}) {
		return apperrors.BadRequestError(nil, "zero token address")
	}
	if e.boundToken != (common.Address{}) {
		return apperrors.ConflictError(ErrTokenAlreadyBound, "a token is already bound")
	}
	e.boundToken = token

	e.logger.Info("token bound", zap.String("token", token.Hex()))
	return nil
}

// UnbindToken releases the bound token. Owner only; the token argument must
// match the current binding.
func (e *Engine) UnbindToken(caller, token common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return apperrors.ForbiddenError(nil, "caller is not the compliance owner")
	}
	if e.boundToken == (common.Address{}) || e.boundToken != token {
		return apperrors.ResourceNotFoundError(ErrTokenNotBound, "token is not bound")
	}
	e.boundToken = common.Address{}

	e.logger.Info("token unbound", zap.String("token", token.Hex()))
	return nil
}

// BoundToken returns the currently bound token, zero if none.
func (e *Engine) BoundToken() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundToken
}

// AddModule binds a rule module. Owner only. The add round-trips through the
// module: a non-plug-and-play module may refuse until its per-instance
// configuration is ready.
func (e *Engine) AddModule(ctx context.Context, caller common.Address, m compliance.Module) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return apperrors.ForbiddenError(nil, "caller is not the compliance owner")
	}
	if len(e.modules) >= e.maxModules {
		return apperrors.CapacityError(nil, "module capacity exceeded")
	}
	for _, bound := range e.modules {
		if bound.Name() == m.Name() {
			return apperrors.ConflictError(ErrModuleBound, "module is already bound")
		}
	}

	if !m.IsPlugAndPlay() {
		ok, err := m.CanComplianceBind(ctx, e.addr)
		if err != nil || !ok {
			return apperrors.ConflictError(ErrModuleRefused, "module refused binding: not configured for this instance")
		}
	}
	if err := m.ComplianceBound(ctx, e.addr); err != nil {
		return apperrors.ConflictError(ErrModuleRefused, "module rejected bind acknowledgment")
	}

	e.modules = append(e.modules, m)
	metrics.BoundModules.Set(float64(len(e.modules)))

	e.logger.Info("module bound", zap.String("module", m.Name()))
	return nil
}

// RemoveModule unbinds a rule module by name. Owner only; evaluation order
// of the remaining modules is preserved.
func (e *Engine) RemoveModule(ctx context.Context, caller common.Address, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return apperrors.ForbiddenError(nil, "caller is not the compliance owner")
	}

	for i, m := range e.modules {
		if m.Name() != name {
			continue
		}
		if err := m.ComplianceUnbound(ctx, e.addr); err != nil {
			e.logger.Warn("module unbind acknowledgment failed",
				zap.String("module", name), zap.Error(err))
		}
		e.modules = append(e.modules[:i], e.modules[i+1:]...)
		metrics.BoundModules.Set(float64(len(e.modules)))

		e.logger.Info("module unbound", zap.String("module", name))
		return nil
	}
	return apperrors.ResourceNotFoundError(ErrModuleNotBound, "module is not bound")
}

// Modules returns the names of bound modules in evaluation order.
func (e *Engine) Modules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, len(e.modules))
	for i, m := range e.modules {
		names[i] = m.Name()
	}
	return names
}

// CanTransfer evaluates the bound modules left to right with identical
// arguments; the first rejection decides. An empty module list allows
// everything. A module error counts as a rejection by that module, never as
// an engine failure.
func (e *Engine) CanTransfer(ctx context.Context, from, to common.Address, amount decimal.Decimal) (bool, error) {
	e.mu.Lock()
	mods := make([]compliance.Module, len(e.modules))
	copy(mods, e.modules)
	e.mu.Unlock()

	for _, m := range mods {
		ok, err := m.ModuleCheck(ctx, from, to, amount, e.addr)
		if err != nil {
			e.logger.Debug("module check errored",
				zap.String("module", m.Name()), zap.Error(err))
			ok = false
		}
		if !ok {
			metrics.TransferChecks.WithLabelValues("rejected").Inc()
			metrics.ModuleRejections.WithLabelValues(m.Name()).Inc()
			e.logger.Debug("transfer rejected",
				zap.String("module", m.Name()),
				zap.String("from", from.Hex()),
				zap.String("to", to.Hex()),
				zap.String("amount", amount.String()))
			return false, nil
		}
	}

	metrics.TransferChecks.WithLabelValues("allowed").Inc()
	return true, nil
}

// Transferred is the post-transfer notification from the bound token. It
// fans out to every module regardless of check outcome; an erroring module
// hook is logged, not propagated, since the transfer already happened.
func (e *Engine) Transferred(ctx context.Context, caller, from, to common.Address, amount decimal.Decimal) error {
	mods, err := e.requireBoundToken(caller)
	if err != nil {
		return err
	}
	for _, m := range mods {
		if err := m.ModuleTransferAction(ctx, from, to, amount, e.addr); err != nil {
			e.logger.Warn("module transfer action failed",
				zap.String("module", m.Name()), zap.Error(err))
		}
	}
	return nil
}

// Created is the post-mint notification from the bound token.
func (e *Engine) Created(ctx context.Context, caller, to common.Address, amount decimal.Decimal) error {
	mods, err := e.requireBoundToken(caller)
	if err != nil {
		return err
	}
	for _, m := range mods {
		if err := m.ModuleMintAction(ctx, to, amount, e.addr); err != nil {
			e.logger.Warn("module mint action failed",
				zap.String("module", m.Name()), zap.Error(err))
		}
	}
	return nil
}

// Destroyed is the post-burn notification from the bound token.
func (e *Engine) Destroyed(ctx context.Context, caller, from common.Address, amount decimal.Decimal) error {
	mods, err := e.requireBoundToken(caller)
	if err != nil {
		return err
	}
	for _, m := range mods {
		if err := m.ModuleBurnAction(ctx, from, amount, e.addr); err != nil {
			e.logger.Warn("module burn action failed",
				zap.String("module", m.Name()), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) requireBoundToken(caller common.Address) ([]compliance.Module, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.boundToken == (common.Address{}) || caller != e.boundToken {
		return nil, apperrors.ForbiddenError(ErrNotBoundToken, "caller is not the bound token")
	}
	mods := make([]compliance.Module, len(e.modules))
	copy(mods, e.modules)
	return mods, nil
}
