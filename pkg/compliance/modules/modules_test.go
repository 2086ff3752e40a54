package modules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/pkg/credential"
)

var (
	instance = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	one      = decimal.NewFromInt(1)
)

// mockCountryReader maps wallets to countries.
type mockCountryReader struct {
	countries map[common.Address]uint16
	err       error
}

func (m *mockCountryReader) InvestorCountry(ctx context.Context, wallet common.Address) (uint16, error) {
	if m.err != nil {
		return 0, m.err
	}
	c, ok := m.countries[wallet]
	if !ok {
		return 0, errors.New("wallet not registered")
	}
	return c, nil
}

func TestCountryRestrict_UnconfiguredInstanceAllows(t *testing.T) {
	m := NewCountryRestrictModule(&mockCountryReader{}, zap.NewNop())

	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCountryRestrict_Blocklist(t *testing.T) {
	reader := &mockCountryReader{countries: map[common.Address]uint16{alice: 840, bob: 643}}
	m := NewCountryRestrictModule(reader, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))

	// Empty blocklist allows everything.
	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)

	m.AddCountry(instance, 643)

	ok, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.False(t, ok)

	m.RemoveCountry(instance, 643)
	ok, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCountryRestrict_Allowlist(t *testing.T) {
	reader := &mockCountryReader{countries: map[common.Address]uint16{alice: 840, bob: 643}}
	m := NewCountryRestrictModule(reader, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))
	m.SetMode(instance, ModeAllowlist)
	m.AddCountry(instance, 840)

	// Both parties must be listed.
	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.False(t, ok)

	m.AddCountry(instance, 643)
	ok, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCountryRestrict_SkipsNullParties(t *testing.T) {
	reader := &mockCountryReader{countries: map[common.Address]uint16{bob: 643}}
	m := NewCountryRestrictModule(reader, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))
	m.SetMode(instance, ModeAllowlist)
	m.AddCountry(instance, 643)

	// Mint leg: from is the null address and is not looked up.
	ok, err := m.ModuleCheck(context.Background(), common.Address{}, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCountryRestrict_LookupFailureRejects(t *testing.T) {
	m := NewCountryRestrictModule(&mockCountryReader{err: errors.New("registry down")}, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))
	m.AddCountry(instance, 643)

	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.False(t, ok)
}

// mockIdentityResolver maps wallets to identity addresses.
type mockIdentityResolver struct {
	identities map[common.Address]common.Address
}

func (m *mockIdentityResolver) IdentityOf(ctx context.Context, wallet common.Address) (common.Address, error) {
	id, ok := m.identities[wallet]
	if !ok {
		return common.Address{}, errors.New("wallet not registered")
	}
	return id, nil
}

// mockClaimReader maps (identity, topic) to claim ids.
type mockClaimReader struct {
	claims map[common.Address]map[uint64][]common.Hash
}

func (m *mockClaimReader) ClaimIDsByTopic(ctx context.Context, addr common.Address, topic uint64) ([]common.Hash, error) {
	return m.claims[addr][topic], nil
}

func TestAccreditation_NotRequiredAllows(t *testing.T) {
	m := NewAccreditationModule(&mockIdentityResolver{}, &mockClaimReader{}, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))

	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccreditation_RequiresRecipientClaim(t *testing.T) {
	bobIdentity := common.HexToAddress("0x0000000000000000000000000000000000001b02")
	resolver := &mockIdentityResolver{identities: map[common.Address]common.Address{bob: bobIdentity}}
	claims := &mockClaimReader{claims: map[common.Address]map[uint64][]common.Hash{}}

	m := NewAccreditationModule(resolver, claims, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))
	m.SetRequired(instance, true)

	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.False(t, ok)

	// Any accepted topic with a claim passes.
	claims.claims[bobIdentity] = map[uint64][]common.Hash{
		credential.TopicQualifiedInvestor: {common.Hash{1}},
	}
	ok, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccreditation_ExemptionThreshold(t *testing.T) {
	m := NewAccreditationModule(&mockIdentityResolver{}, &mockClaimReader{}, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))
	m.SetRequired(instance, true)
	m.SetMinExemptAmount(instance, decimal.NewFromInt(1000))

	// Below the threshold: the unaccredited recipient is rejected.
	ok, err := m.ModuleCheck(context.Background(), alice, bob, decimal.NewFromInt(999), instance)
	require.NoError(t, err)
	assert.False(t, ok)

	// At or above the threshold the requirement is waived.
	ok, err = m.ModuleCheck(context.Background(), alice, bob, decimal.NewFromInt(1000), instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccreditation_BurnsBypass(t *testing.T) {
	m := NewAccreditationModule(&mockIdentityResolver{}, &mockClaimReader{}, zap.NewNop())
	require.NoError(t, m.ComplianceBound(context.Background(), instance))
	m.SetRequired(instance, true)

	ok, err := m.ModuleCheck(context.Background(), alice, common.Address{}, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

// mockCredentialChecker counts verifier queries.
type mockCredentialChecker struct {
	valid map[common.Address]map[credential.Type]bool
	calls int
}

func (m *mockCredentialChecker) HasValidCredentialOfType(ctx context.Context, subject common.Address, credType credential.Type) (bool, error) {
	m.calls++
	return m.valid[subject][credType], nil
}

func TestCredentialType_RequiredSetLifecycle(t *testing.T) {
	m := NewCredentialTypeModule(&mockCredentialChecker{}, 0, zap.NewNop())

	ok, err := m.CanComplianceBind(context.Background(), instance)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.AddRequiredType(instance, credential.TypeKYC))
	require.ErrorIs(t, m.AddRequiredType(instance, credential.TypeKYC), ErrTypeAlreadyRequired)
	require.Error(t, m.AddRequiredType(instance, credential.Type(99)))

	ok, err = m.CanComplianceBind(context.Background(), instance)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.RemoveRequiredType(instance, credential.TypeKYC))
	require.Error(t, m.RemoveRequiredType(instance, credential.TypeKYC))
}

func TestCredentialType_ClientEnumerationOffset(t *testing.T) {
	m := NewCredentialTypeModule(&mockCredentialChecker{}, 0, zap.NewNop())

	// Client value 0 is canonical KYC (1).
	require.NoError(t, m.AddRequiredClientType(instance, credential.ClientTypeKYC))
	assert.Equal(t, []credential.Type{credential.TypeKYC}, m.RequiredTypes(instance))
}

func TestCredentialType_BothPartiesChecked(t *testing.T) {
	checker := &mockCredentialChecker{valid: map[common.Address]map[credential.Type]bool{
		alice: {credential.TypeKYC: true},
	}}
	m := NewCredentialTypeModule(checker, 0, zap.NewNop())
	require.NoError(t, m.AddRequiredType(instance, credential.TypeKYC))

	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.False(t, ok)

	checker.valid[bob] = map[credential.Type]bool{credential.TypeKYC: true}
	ok, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCredentialType_CacheBoundsVerifierQueries(t *testing.T) {
	checker := &mockCredentialChecker{valid: map[common.Address]map[credential.Type]bool{
		alice: {credential.TypeKYC: true},
		bob:   {credential.TypeKYC: true},
	}}
	m := NewCredentialTypeModule(checker, time.Hour, zap.NewNop())
	require.NoError(t, m.AddRequiredType(instance, credential.TypeKYC))

	_, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	first := checker.calls

	// Second check within the TTL hits the cache only.
	_, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.Equal(t, first, checker.calls)

	// Past the TTL the verifier is consulted again.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.Greater(t, checker.calls, first)
}

func TestCredentialType_ConfigChangeInvalidatesCache(t *testing.T) {
	checker := &mockCredentialChecker{valid: map[common.Address]map[credential.Type]bool{
		alice: {credential.TypeKYC: true},
		bob:   {credential.TypeKYC: true},
	}}
	m := NewCredentialTypeModule(checker, time.Hour, zap.NewNop())
	require.NoError(t, m.AddRequiredType(instance, credential.TypeKYC))

	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)

	// Adding an unmet requirement flushes cached approvals.
	require.NoError(t, m.AddRequiredType(instance, credential.TypeAML))
	ok, err = m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialType_TransferActionRefreshesCache(t *testing.T) {
	checker := &mockCredentialChecker{valid: map[common.Address]map[credential.Type]bool{
		alice: {credential.TypeKYC: true},
		bob:   {credential.TypeKYC: true},
	}}
	m := NewCredentialTypeModule(checker, time.Hour, zap.NewNop())
	require.NoError(t, m.AddRequiredType(instance, credential.TypeKYC))

	require.NoError(t, m.ModuleTransferAction(context.Background(), alice, bob, one, instance))
	calls := checker.calls

	// The refreshed entries serve the next check without new queries.
	ok, err := m.ModuleCheck(context.Background(), alice, bob, one, instance)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, calls, checker.calls)
}
