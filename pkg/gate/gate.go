// Package gate implements the investment gate: a pure admission decision
// over venue whitelists, identity verification, credential badges and
// per-venue position bounds, plus the venue-reported position log backing
// it.
package gate

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/harborfin/compliance-middleware/pkg/credential"
)

// Venue is a whitelisted investment venue and its admission policy.
type Venue struct {
	Address            common.Address
	RequiredBadgeTypes []credential.Type
	// MinInvestment and MaxInvestment bound the investor's cumulative
	// position at this venue; zero disables the respective bound.
	MinInvestment decimal.Decimal
	MaxInvestment decimal.Decimal
}

// Decision reasons reported by CanInvest.
const (
	ReasonOK                  = "ok"
	ReasonOverride            = "override"
	ReasonVenueNotWhitelisted = "venue_not_whitelisted"
	ReasonNotVerified         = "not_verified"
	ReasonMissingBadge        = "missing_badge"
	ReasonBelowMinimum        = "below_minimum"
	ReasonAboveMaximum        = "above_maximum"
)
