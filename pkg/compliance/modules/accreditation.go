package modules

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/pkg/credential"
)

// IdentityResolver resolves a wallet to its bound identity.
type IdentityResolver interface {
	IdentityOf(ctx context.Context, wallet common.Address) (common.Address, error)
}

// ClaimTopicReader lists an identity's claim ids under a topic.
type ClaimTopicReader interface {
	ClaimIDsByTopic(ctx context.Context, addr common.Address, topic uint64) ([]common.Hash, error)
}

type accreditationConfig struct {
	required bool
	topics   []uint64
	// minExemptAmount, when positive, lets transfers at or above it bypass
	// the accreditation requirement.
	minExemptAmount decimal.Decimal
}

// AccreditationModule requires the recipient's identity to carry at least
// one investor-accreditation claim topic. Claim presence is the whole check:
// issuer trust is deliberately not re-verified here, so an asset can accept
// topics outside the registry's required set.
type AccreditationModule struct {
	mu         sync.RWMutex
	registry   IdentityResolver
	identities ClaimTopicReader
	configs    map[common.Address]*accreditationConfig
	logger     *zap.Logger
}

// NewAccreditationModule creates the accreditation requirement module.
func NewAccreditationModule(registry IdentityResolver, identities ClaimTopicReader, logger *zap.Logger) *AccreditationModule {
	return &AccreditationModule{
		registry:   registry,
		identities: identities,
		configs:    make(map[common.Address]*accreditationConfig),
		logger:     logger,
	}
}

func (m *AccreditationModule) Name() string { return "accreditation_required" }

func (m *AccreditationModule) IsPlugAndPlay() bool { return true }

func (m *AccreditationModule) CanComplianceBind(ctx context.Context, compliance common.Address) (bool, error) {
	return true, nil
}

func (m *AccreditationModule) ComplianceBound(ctx context.Context, compliance common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[compliance]; !ok {
		m.configs[compliance] = defaultAccreditationConfig()
	}
	return nil
}

func (m *AccreditationModule) ComplianceUnbound(ctx context.Context, compliance common.Address) error {
	return nil
}

// SetRequired toggles the accreditation requirement for an instance.
func (m *AccreditationModule) SetRequired(compliance common.Address, required bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config(compliance).required = required
}

// SetTopics overrides the accepted accreditation claim topics.
func (m *AccreditationModule) SetTopics(compliance common.Address, topics []uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config(compliance).topics = append([]uint64(nil), topics...)
}

// SetMinExemptAmount configures the large-transfer exemption; zero disables
// it.
func (m *AccreditationModule) SetMinExemptAmount(compliance common.Address, min decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config(compliance).minExemptAmount = min
}

// ModuleCheck passes when accreditation is not required, when the transfer
// amount reaches the exemption threshold, or when the recipient's identity
// holds a claim under any accepted topic.
func (m *AccreditationModule) ModuleCheck(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) (bool, error) {
	m.mu.RLock()
	cfg, ok := m.configs[compliance]
	if !ok || !cfg.required {
		m.mu.RUnlock()
		return true, nil
	}
	topics := append([]uint64(nil), cfg.topics...)
	minExempt := cfg.minExemptAmount
	m.mu.RUnlock()

	if minExempt.IsPositive() && amount.GreaterThanOrEqual(minExempt) {
		return true, nil
	}
	if to == (common.Address{}) {
		// Burns have no recipient to accredit.
		return true, nil
	}

	identityAddr, err := m.registry.IdentityOf(ctx, to)
	if err != nil {
		m.logger.Debug("identity lookup failed",
			zap.String("wallet", to.Hex()), zap.Error(err))
		return false, nil
	}

	for _, topic := range topics {
		claimIDs, err := m.identities.ClaimIDsByTopic(ctx, identityAddr, topic)
		if err != nil {
			continue
		}
		if len(claimIDs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (m *AccreditationModule) ModuleTransferAction(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

func (m *AccreditationModule) ModuleMintAction(ctx context.Context, to common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

func (m *AccreditationModule) ModuleBurnAction(ctx context.Context, from common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

func defaultAccreditationConfig() *accreditationConfig {
	return &accreditationConfig{
		topics: []uint64{
			credential.TopicAccreditedInvestor,
			credential.TopicQualifiedInvestor,
			credential.TopicInstitutionalInvestor,
		},
	}
}

func (m *AccreditationModule) config(compliance common.Address) *accreditationConfig {
	cfg, ok := m.configs[compliance]
	if !ok {
		cfg = defaultAccreditationConfig()
		m.configs[compliance] = cfg
	}
	return cfg
}
