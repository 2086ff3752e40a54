// Package compliance implements the modular transfer-compliance engine: a
// per-asset instance that binds one token and an ordered list of rule
// modules, and evaluates transfers as an AND-fold over module checks.
package compliance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Module is the rule plugin contract. ModuleCheck is a pure predicate; the
// action hooks mutate module-local state and are invoked only by a compliance
// instance the module is bound to.
type Module interface {
	// Name is a stable diagnostic identifier, unique among bound modules.
	Name() string

	// ModuleCheck decides whether a transfer passes this rule. It may read
	// external collaborators but must not mutate state.
	ModuleCheck(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) (bool, error)

	// ModuleTransferAction, ModuleMintAction and ModuleBurnAction are
	// post-action notifications fanned out by the engine after the bound
	// token reports a completed transfer, mint or burn.
	ModuleTransferAction(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) error
	ModuleMintAction(ctx context.Context, to common.Address, amount decimal.Decimal, compliance common.Address) error
	ModuleBurnAction(ctx context.Context, from common.Address, amount decimal.Decimal, compliance common.Address) error

	// IsPlugAndPlay reports whether the module can bind without prior
	// per-instance configuration.
	IsPlugAndPlay() bool

	// CanComplianceBind is the module's readiness predicate for a given
	// compliance instance. Always true for plug-and-play modules.
	CanComplianceBind(ctx context.Context, compliance common.Address) (bool, error)

	// ComplianceBound and ComplianceUnbound acknowledge the engine's
	// add/remove round-trip.
	ComplianceBound(ctx context.Context, compliance common.Address) error
	ComplianceUnbound(ctx context.Context, compliance common.Address) error
}
