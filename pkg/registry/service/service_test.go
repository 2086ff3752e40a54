package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	directoryservice "github.com/harborfin/compliance-middleware/pkg/directory/service"
	directorystore "github.com/harborfin/compliance-middleware/pkg/directory/store"
	"github.com/harborfin/compliance-middleware/pkg/identity"
	identityservice "github.com/harborfin/compliance-middleware/pkg/identity/service"
	identitystore "github.com/harborfin/compliance-middleware/pkg/identity/store"
	"github.com/harborfin/compliance-middleware/pkg/issuer"
	issuerservice "github.com/harborfin/compliance-middleware/pkg/issuer/service"
	issuerstore "github.com/harborfin/compliance-middleware/pkg/issuer/store"
	registrystore "github.com/harborfin/compliance-middleware/pkg/registry/store"
)

var (
	regOwner         = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	regAgent         = common.HexToAddress("0x00000000000000000000000000000000000000ab")
	issuerAddr       = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	issuerAdmin      = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	investorWallet   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	investorIdentity = common.HexToAddress("0x0000000000000000000000000000000000000a02")
)

const (
	topicKYC           = uint64(1)
	topicAccreditation = uint64(2)
)

// registryFixture wires the registry against real identity, issuer and
// directory services over memory stores, so IsVerified runs the same
// claim-validation path as production.
type registryFixture struct {
	svc        *Service
	identities *identityservice.Service
	issuers    *issuerservice.Service
	directory  *directoryservice.Service

	signerKey  *ecdsa.PrivateKey
	signerAddr common.Address
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	identities := identityservice.NewService(identitystore.NewMemoryStore(), logger)
	issuers := issuerservice.NewService(identities, issuerstore.NewMemoryRevocationStore(), nil, nil, logger)
	dir := directoryservice.NewService(
		directorystore.NewMemoryIssuerStore(),
		directorystore.NewMemoryTopicStore(),
		regOwner, 8, 8, logger)
	svc := NewService(registrystore.NewMemoryStorage(), identities, issuers, dir, dir, regOwner, []common.Address{regAgent}, logger)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)

	// Issuer identity with a dedicated claim-signer key.
	_, err = identities.CreateIdentity(ctx, issuerAddr, issuerAdmin)
	require.NoError(t, err)
	require.NoError(t, identities.AddKey(ctx, issuerAddr, issuerAdmin,
		identity.AddressKeyID(signerAddr), identity.PurposeClaimSigner, identity.KeyTypeECDSA))

	_, err = identities.CreateIdentity(ctx, investorIdentity, investorWallet)
	require.NoError(t, err)

	return &registryFixture{
		svc:        svc,
		identities: identities,
		issuers:    issuers,
		directory:  dir,
		signerKey:  key,
		signerAddr: signerAddr,
	}
}

// signClaim signs the claim digest with the fixture's claim-signer key,
// using the same prefixed-hash scheme the issuer verifies against.
func (f *registryFixture) signClaim(t *testing.T, subject common.Address, topic uint64, data []byte) []byte {
	t.Helper()
	digest := issuer.ClaimDigest(subject, topic, data)
	prefixed := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	sig, err := crypto.Sign(prefixed.Bytes(), f.signerKey)
	require.NoError(t, err)
	return sig
}

func (f *registryFixture) addClaim(t *testing.T, topic uint64, data []byte) []byte {
	t.Helper()
	sig := f.signClaim(t, investorIdentity, topic, data)
	_, err := f.identities.AddClaim(context.Background(), investorIdentity, investorWallet, identity.Claim{
		Topic:     topic,
		Scheme:    1,
		Issuer:    issuerAddr,
		Signature: sig,
		Data:      data,
	})
	require.NoError(t, err)
	return sig
}

func (f *registryFixture) isVerified(t *testing.T) bool {
	t.Helper()
	ok, err := f.svc.IsVerified(context.Background(), investorWallet)
	require.NoError(t, err)
	return ok
}

func TestRegisterIdentity(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	err := f.svc.RegisterIdentity(ctx, investorWallet, investorWallet, investorIdentity, 840)
	require.ErrorIs(t, err, ErrNotAgent)

	err = f.svc.RegisterIdentity(ctx, regAgent, common.Address{}, investorIdentity, 840)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	require.NoError(t, f.svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840))

	err = f.svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataConflict))

	id, err := f.svc.IdentityOf(ctx, investorWallet)
	require.NoError(t, err)
	assert.Equal(t, investorIdentity, id)

	country, err := f.svc.InvestorCountry(ctx, investorWallet)
	require.NoError(t, err)
	assert.Equal(t, uint16(840), country)
}

func TestRegisterIdentity_OwnerActsAsAgent(t *testing.T) {
	f := newRegistryFixture(t)
	require.NoError(t, f.svc.RegisterIdentity(context.Background(), regOwner, investorWallet, investorIdentity, 276))
}

func TestAddAgent(t *testing.T) {
	f := newRegistryFixture(t)
	newAgent := common.HexToAddress("0x00000000000000000000000000000000000000ac")

	err := f.svc.AddAgent(newAgent, newAgent)
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))

	require.NoError(t, f.svc.AddAgent(regOwner, newAgent))
	require.NoError(t, f.svc.RegisterIdentity(context.Background(), newAgent, investorWallet, investorIdentity, 840))
}

func TestBatchRegisterIdentity(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	w2 := common.HexToAddress("0x0000000000000000000000000000000000000b01")
	i2 := common.HexToAddress("0x0000000000000000000000000000000000000b02")

	err := f.svc.BatchRegisterIdentity(ctx, regAgent,
		[]common.Address{investorWallet, w2},
		[]common.Address{investorIdentity},
		[]uint16{840, 276})
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	require.NoError(t, f.svc.BatchRegisterIdentity(ctx, regAgent,
		[]common.Address{investorWallet, w2},
		[]common.Address{investorIdentity, i2},
		[]uint16{840, 276}))

	for _, w := range []common.Address{investorWallet, w2} {
		ok, err := f.svc.Contains(ctx, w)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestBatchRegisterIdentity_StopsOnFirstFailure(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	w2 := common.HexToAddress("0x0000000000000000000000000000000000000b01")
	require.NoError(t, f.svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840))

	err := f.svc.BatchRegisterIdentity(ctx, regAgent,
		[]common.Address{investorWallet, w2},
		[]common.Address{investorIdentity, investorIdentity},
		[]uint16{840, 276})
	require.Error(t, err)

	// Entries after the failing one are not applied.
	ok, err := f.svc.Contains(ctx, w2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBindingLifecycle(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	err := f.svc.UpdateCountry(ctx, regAgent, investorWallet, 276)
	require.ErrorIs(t, err, ErrNotRegistered)

	require.NoError(t, f.svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840))

	other := common.HexToAddress("0x0000000000000000000000000000000000000a03")
	require.NoError(t, f.svc.UpdateIdentity(ctx, regAgent, investorWallet, other))
	id, err := f.svc.IdentityOf(ctx, investorWallet)
	require.NoError(t, err)
	assert.Equal(t, other, id)

	require.NoError(t, f.svc.UpdateCountry(ctx, regAgent, investorWallet, 276))
	country, err := f.svc.InvestorCountry(ctx, investorWallet)
	require.NoError(t, err)
	assert.Equal(t, uint16(276), country)

	require.NoError(t, f.svc.DeleteIdentity(ctx, regAgent, investorWallet))
	err = f.svc.DeleteIdentity(ctx, regAgent, investorWallet)
	require.ErrorIs(t, err, ErrNotRegistered)

	ok, err := f.svc.Contains(ctx, investorWallet)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsVerified_Lifecycle(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	// Unregistered wallets are never verified.
	assert.False(t, f.isVerified(t))

	// With no required topics, a binding alone suffices.
	require.NoError(t, f.svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840))
	assert.True(t, f.isVerified(t))

	// A required topic with no matching claim fails.
	require.NoError(t, f.directory.AddClaimTopic(ctx, regOwner, topicKYC))
	assert.False(t, f.isVerified(t))

	// A claim from an issuer nobody trusts for the topic does not count.
	kycSig := f.addClaim(t, topicKYC, []byte("kyc passed"))
	assert.False(t, f.isVerified(t))

	require.NoError(t, f.directory.AddTrustedIssuer(ctx, regOwner, issuerAddr, []uint64{topicKYC}))
	assert.True(t, f.isVerified(t))

	// Verification is AND across required topics.
	require.NoError(t, f.directory.AddClaimTopic(ctx, regOwner, topicAccreditation))
	assert.False(t, f.isVerified(t))

	// Trust is per topic: the issuer must be trusted for this one too.
	f.addClaim(t, topicAccreditation, []byte("accredited"))
	assert.False(t, f.isVerified(t))

	require.NoError(t, f.directory.UpdateIssuerTopics(ctx, regOwner, issuerAddr, []uint64{topicKYC, topicAccreditation}))
	assert.True(t, f.isVerified(t))

	// Revoking one signature flips the whole verdict.
	require.NoError(t, f.issuers.RevokeClaimBySignature(ctx, issuerAddr, issuerAdmin, kycSig))
	assert.False(t, f.isVerified(t))
}

func TestIsVerified_SignerLosesClaimPurpose(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840))
	require.NoError(t, f.directory.AddClaimTopic(ctx, regOwner, topicKYC))
	require.NoError(t, f.directory.AddTrustedIssuer(ctx, regOwner, issuerAddr, []uint64{topicKYC}))
	f.addClaim(t, topicKYC, []byte("kyc passed"))
	require.True(t, f.isVerified(t))

	// Rotating the claim-signer key off the issuer identity invalidates
	// every claim it signed, with no per-claim revocation needed.
	require.NoError(t, f.identities.RemoveKey(ctx, issuerAddr, issuerAdmin,
		identity.AddressKeyID(f.signerAddr), identity.PurposeClaimSigner))
	assert.False(t, f.isVerified(t))
}

func TestIsVerified_ForeignSignature(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840))
	require.NoError(t, f.directory.AddClaimTopic(ctx, regOwner, topicKYC))
	require.NoError(t, f.directory.AddTrustedIssuer(ctx, regOwner, issuerAddr, []uint64{topicKYC}))

	// Signed by a key that was never registered on the issuer identity.
	strangerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	data := []byte("kyc passed")
	digest := issuer.ClaimDigest(investorIdentity, topicKYC, data)
	prefixed := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	sig, err := crypto.Sign(prefixed.Bytes(), strangerKey)
	require.NoError(t, err)

	_, err = f.identities.AddClaim(ctx, investorIdentity, investorWallet, identity.Claim{
		Topic:     topicKYC,
		Scheme:    1,
		Issuer:    issuerAddr,
		Signature: sig,
		Data:      data,
	})
	require.NoError(t, err)

	assert.False(t, f.isVerified(t))
}

// mockValidator lets a test fault individual issuers.
type mockValidator struct {
	verdict map[common.Address]bool
	faulty  map[common.Address]bool
}

func (m *mockValidator) IsClaimValid(ctx context.Context, issuerAddr, subject common.Address, topic uint64, signature, data []byte) (bool, error) {
	if m.faulty[issuerAddr] {
		return false, errors.New("issuer unreachable")
	}
	return m.verdict[issuerAddr], nil
}

func TestIsVerified_IssuerFaultFailsCandidateOnly(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	identities := identityservice.NewService(identitystore.NewMemoryStore(), logger)
	dir := directoryservice.NewService(
		directorystore.NewMemoryIssuerStore(),
		directorystore.NewMemoryTopicStore(),
		regOwner, 8, 8, logger)

	faultyIssuer := common.HexToAddress("0x00000000000000000000000000000000000000e3")
	validator := &mockValidator{
		verdict: map[common.Address]bool{issuerAddr: true},
		faulty:  map[common.Address]bool{faultyIssuer: true},
	}
	svc := NewService(registrystore.NewMemoryStorage(), identities, validator, dir, dir, regOwner, []common.Address{regAgent}, logger)

	_, err := identities.CreateIdentity(ctx, investorIdentity, investorWallet)
	require.NoError(t, err)
	require.NoError(t, svc.RegisterIdentity(ctx, regAgent, investorWallet, investorIdentity, 840))
	require.NoError(t, dir.AddClaimTopic(ctx, regOwner, topicKYC))
	require.NoError(t, dir.AddTrustedIssuer(ctx, regOwner, faultyIssuer, []uint64{topicKYC}))
	require.NoError(t, dir.AddTrustedIssuer(ctx, regOwner, issuerAddr, []uint64{topicKYC}))

	for _, iss := range []common.Address{faultyIssuer, issuerAddr} {
		_, err := identities.AddClaim(ctx, investorIdentity, investorWallet, identity.Claim{
			Topic:  topicKYC,
			Scheme: 1,
			Issuer: iss,
			Data:   []byte("kyc passed"),
		})
		require.NoError(t, err)
	}

	// The unreachable issuer fails only its own claim; the healthy
	// issuer's attestation still verifies the wallet.
	ok, err := svc.IsVerified(ctx, investorWallet)
	require.NoError(t, err)
	assert.True(t, ok)

	// With only the faulty issuer left, the verdict degrades to false
	// without surfacing an error.
	require.NoError(t, dir.RemoveTrustedIssuer(ctx, regOwner, issuerAddr))
	validator.verdict[issuerAddr] = false
	ok, err = svc.IsVerified(ctx, investorWallet)
	require.NoError(t, err)
	assert.False(t, ok)
}
