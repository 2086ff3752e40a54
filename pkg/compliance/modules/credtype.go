package modules

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/internal/metrics"
	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/credential"
)

var ErrTypeAlreadyRequired = errors.New("credential type already required")

// CredentialChecker is the slice of the proof verifier the credential-type
// module consults.
type CredentialChecker interface {
	HasValidCredentialOfType(ctx context.Context, subject common.Address, credType credential.Type) (bool, error)
}

type credCacheKey struct {
	compliance common.Address
	user       common.Address
}

type credCacheEntry struct {
	valid     bool
	refreshed time.Time
}

// CredentialTypeModule requires both transfer parties to hold a valid
// verified-credential for every type configured on the compliance instance.
// Verifier results are cached per (instance, user) for a bounded window; the
// cache is an approximation, refreshed on the post-transfer hook, never a
// source of truth.
type CredentialTypeModule struct {
	mu       sync.RWMutex
	verifier CredentialChecker
	required map[common.Address][]credential.Type
	cache    map[credCacheKey]credCacheEntry
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewCredentialTypeModule creates the verified-credential-type module.
// cacheTTL bounds how stale a cached verifier answer may be; zero disables
// caching.
func NewCredentialTypeModule(verifier CredentialChecker, cacheTTL time.Duration, logger *zap.Logger) *CredentialTypeModule {
	return &CredentialTypeModule{
		verifier: verifier,
		required: make(map[common.Address][]credential.Type),
		cache:    make(map[credCacheKey]credCacheEntry),
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *CredentialTypeModule) Name() string { return "credential_type_required" }

// IsPlugAndPlay is false: the module refuses to bind to an instance with no
// required types configured.
func (m *CredentialTypeModule) IsPlugAndPlay() bool { return false }

func (m *CredentialTypeModule) CanComplianceBind(ctx context.Context, compliance common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.required[compliance]) > 0, nil
}

func (m *CredentialTypeModule) ComplianceBound(ctx context.Context, compliance common.Address) error {
	return nil
}

func (m *CredentialTypeModule) ComplianceUnbound(ctx context.Context, compliance common.Address) error {
	return nil
}

// AddRequiredType adds a credential type to the instance's required set.
// Re-adding a type already required is a protocol-level conflict, not a
// no-op.
func (m *CredentialTypeModule) AddRequiredType(compliance common.Address, credType credential.Type) error {
	if !credType.Valid() {
		return apperrors.BadRequestError(nil, "unknown credential type")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.required[compliance] {
		if t == credType {
			return apperrors.ConflictError(ErrTypeAlreadyRequired, "credential type already required")
		}
	}
	m.required[compliance] = append(m.required[compliance], credType)
	m.invalidateInstanceLocked(compliance)
	return nil
}

// AddRequiredClientType is AddRequiredType for callers speaking the legacy
// zero-based client enumeration.
func (m *CredentialTypeModule) AddRequiredClientType(compliance common.Address, clientType credential.ClientType) error {
	return m.AddRequiredType(compliance, clientType.Canonical())
}

// RemoveRequiredType removes a credential type from the instance's required
// set.
func (m *CredentialTypeModule) RemoveRequiredType(compliance common.Address, credType credential.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := m.required[compliance]
	for i, t := range types {
		if t == credType {
			m.required[compliance] = append(types[:i], types[i+1:]...)
			m.invalidateInstanceLocked(compliance)
			return nil
		}
	}
	return apperrors.ResourceNotFoundError(nil, "credential type is not required")
}

// RequiredTypes returns the instance's required credential types in
// configuration order.
func (m *CredentialTypeModule) RequiredTypes(compliance common.Address) []credential.Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]credential.Type(nil), m.required[compliance]...)
}

// ModuleCheck requires every non-null party to hold a valid credential of
// every required type, consulting the cache before the verifier.
func (m *CredentialTypeModule) ModuleCheck(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) (bool, error) {
	m.mu.RLock()
	types := append([]credential.Type(nil), m.required[compliance]...)
	m.mu.RUnlock()

	if len(types) == 0 {
		return true, nil
	}

	for _, party := range []common.Address{from, to} {
		if party == (common.Address{}) {
			continue
		}
		ok, err := m.userHolds(ctx, compliance, party, types)
		if err != nil {
			m.logger.Debug("credential check failed",
				zap.String("user", party.Hex()), zap.Error(err))
			return false, nil
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ModuleTransferAction opportunistically refreshes both parties' cache
// entries after a completed transfer.
func (m *CredentialTypeModule) ModuleTransferAction(ctx context.Context, from, to common.Address, amount decimal.Decimal, compliance common.Address) error {
	m.mu.RLock()
	types := append([]credential.Type(nil), m.required[compliance]...)
	m.mu.RUnlock()

	if len(types) == 0 {
		return nil
	}
	for _, party := range []common.Address{from, to} {
		if party == (common.Address{}) {
			continue
		}
		m.refresh(ctx, compliance, party, types)
	}
	return nil
}

func (m *CredentialTypeModule) ModuleMintAction(ctx context.Context, to common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

func (m *CredentialTypeModule) ModuleBurnAction(ctx context.Context, from common.Address, amount decimal.Decimal, compliance common.Address) error {
	return nil
}

func (m *CredentialTypeModule) userHolds(ctx context.Context, compliance, user common.Address, types []credential.Type) (bool, error) {
	key := credCacheKey{compliance, user}

	if m.cacheTTL > 0 {
		m.mu.RLock()
		entry, ok := m.cache[key]
		m.mu.RUnlock()
		if ok && m.now().Sub(entry.refreshed) < m.cacheTTL {
			metrics.CredentialCacheLookups.WithLabelValues("hit").Inc()
			return entry.valid, nil
		}
	}
	metrics.CredentialCacheLookups.WithLabelValues("miss").Inc()

	valid, err := m.queryVerifier(ctx, user, types)
	if err != nil {
		return false, err
	}
	if m.cacheTTL > 0 {
		m.mu.Lock()
		m.cache[key] = credCacheEntry{valid: valid, refreshed: m.now()}
		m.mu.Unlock()
	}
	return valid, nil
}

func (m *CredentialTypeModule) refresh(ctx context.Context, compliance, user common.Address, types []credential.Type) {
	valid, err := m.queryVerifier(ctx, user, types)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.cache[credCacheKey{compliance, user}] = credCacheEntry{valid: valid, refreshed: m.now()}
	m.mu.Unlock()
}

func (m *CredentialTypeModule) queryVerifier(ctx context.Context, user common.Address, types []credential.Type) (bool, error) {
	for _, t := range types {
		ok, err := m.verifier.HasValidCredentialOfType(ctx, user, t)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// invalidateInstanceLocked drops every cache entry of an instance after its
// required set changed. Callers hold the write lock.
func (m *CredentialTypeModule) invalidateInstanceLocked(compliance common.Address) {
	for key := range m.cache {
		if key.compliance == compliance {
			delete(m.cache, key)
		}
	}
}
