// Package modules holds the concrete rule modules bound to compliance
// engine instances. Each module keeps per-instance configuration keyed by
// the compliance instance address.
package modules

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CountryReader is the slice of the identity registry the country module
// needs.
type CountryReader interface {
	InvestorCountry(ctx context.Context, wallet common.Address) (uint16, error)
}

// RestrictionMode selects how the country list is interpreted.
type RestrictionMode int

const (
	// ModeBlocklist rejects a transfer when either party's country is
	// listed.
	ModeBlocklist RestrictionMode = iota
	// ModeAllowlist rejects a transfer unless both parties' countries are
	// listed.
	ModeAllowlist
)

type countryConfig struct {
	mode      RestrictionMode
	countries map[uint16]struct{}
}

// CountryRestrictModule restricts transfers by the parties' registered
// countries, in allowlist or blocklist mode per compliance instance.
type CountryRestrictModule struct {
	mu       sync.RWMutex
	registry CountryReader
	configs  map[common.Address]*countryConfig
	logger   *zap.Logger
}

// NewCountryRestrictModule creates the country restriction module.
func NewCountryRestrictModule(registry CountryReader, logger *zap.Logger) *CountryRestrictModule {
	return &CountryRestrictModule{
		registry: registry,
		configs:  make(map[common.Address]*countryConfig),
		logger:   logger,
	}
}

func (m *CountryRestrictModule) Name() string { return "country_restrict" }

func (m *CountryRestrictModule) IsPlugAndPlay() bool { return true }

func (m *CountryRestrictModule) CanComplianceBind(ctx context.Context, compliance common.Address) (bool, error) {
	return true, nil
}

func (m *CountryRestrictModule) ComplianceBound(ctx context.Context, compliance common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[compliance]; !ok {
		m.configs[compliance] = &countryConfig{countries: make(map[uint16]struct{})}
	}
	return nil
}

func (m *CountryRestrictModule) ComplianceUnbound(ctx context.Context, compliance common.Address) error {
	return nil
}

// SetMode switches a compliance instance between allowlist and blocklist
// interpretation of its country set.
func (m *CountryRestrictModule) SetMode(compliance common.Address, mode RestrictionMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config(compliance).mode = mode
}

// AddCountry adds a country code to the instance's list.
func (m *CountryRestrictModule) AddCountry(compliance common.Address, country uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config(compliance).countries[country] = struct{}{}
}

// RemoveCountry removes a country code from the instance's list.
func (m *CountryRestrictModule) RemoveCountry(compliance common.Address, country uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.config(compliance).countries, country)
}

// ModuleCheck fetches both parties' registered countries and applies the
// instance's mode. Null parties (mint or burn legs) are skipped. A party
// whose country cannot be resolved fails the check.
func (m *CountryRestrictModule) ModuleCheck(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) (bool, error) {
	m.mu.RLock()
	cfg, ok := m.configs[compliance]
	if !ok {
		m.mu.RUnlock()
		return true, nil
	}
	mode := cfg.mode
	countries := make(map[uint16]struct{}, len(cfg.countries))
	for c := range cfg.countries {
		countries[c] = struct{}{}
	}
	m.mu.RUnlock()

	if len(countries) == 0 && mode == ModeBlocklist {
		return true, nil
	}

	for _, party := range []common.Address{from, to} {
		if party == (common.Address{}) {
			continue
		}
		country, err := m.registry.InvestorCountry(ctx, party)
		if err != nil {
			m.logger.Debug("country lookup failed",
				zap.String("wallet", party.Hex()), zap.Error(err))
			return false, nil
		}
		_, listed := countries[country]
		switch mode {
		case ModeAllowlist:
			if !listed {
				return false, nil
			}
		case ModeBlocklist:
			if listed {
				return false, nil
			}
		}
	}
	return true, nil
}

func (m *CountryRestrictModule) ModuleTransferAction(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

func (m *CountryRestrictModule) ModuleMintAction(ctx context.Context, to common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

func (m *CountryRestrictModule) ModuleBurnAction(ctx context.Context, from common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

// config returns the instance config, creating it on first use. Callers hold
// the write lock.
func (m *CountryRestrictModule) config(compliance common.Address) *countryConfig {
	cfg, ok := m.configs[compliance]
	if !ok {
		cfg = &countryConfig{countries: make(map[uint16]struct{})}
		m.configs[compliance] = cfg
	}
	return cfg
}
