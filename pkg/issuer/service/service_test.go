package service

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/credential"
	"github.com/harborfin/compliance-middleware/pkg/identity"
	identityservice "github.com/harborfin/compliance-middleware/pkg/identity/service"
	identitystore "github.com/harborfin/compliance-middleware/pkg/identity/store"
	"github.com/harborfin/compliance-middleware/pkg/issuer"
	"github.com/harborfin/compliance-middleware/pkg/issuer/store"
	"github.com/harborfin/compliance-middleware/pkg/zkproof"
)

var (
	issuerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	issuerAdmin = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	subject     = common.HexToAddress("0x0000000000000000000000000000000000000a01")

	zkVKey = []byte("issuer-test-vkey")
)

func newIssuerFixture(t *testing.T) (*Service, *identityservice.Service) {
	t.Helper()
	identities := identityservice.NewService(identitystore.NewMemoryStore(), zap.NewNop())
	svc := NewService(identities, store.NewMemoryRevocationStore(), zkproof.NewCommitmentBackend(), zkVKey, zap.NewNop())

	_, err := identities.CreateIdentity(context.Background(), issuerAddr, issuerAdmin)
	require.NoError(t, err)
	return svc, identities
}

func TestIsClaimValid(t *testing.T) {
	svc, identities := newIssuerFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)
	require.NoError(t, identities.AddKey(ctx, issuerAddr, issuerAdmin,
		identity.AddressKeyID(signerAddr), identity.PurposeClaimSigner, identity.KeyTypeECDSA))

	data := []byte("kyc passed")
	digest := issuer.ClaimDigest(subject, 1, data)
	prefixed := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	sig, err := crypto.Sign(prefixed.Bytes(), key)
	require.NoError(t, err)

	valid, err := svc.IsClaimValid(ctx, issuerAddr, subject, 1, sig, data)
	require.NoError(t, err)
	assert.True(t, valid)

	// Transaction-style signatures with v offset by 27 recover the same.
	shifted := append([]byte(nil), sig...)
	shifted[64] += 27
	valid, err = svc.IsClaimValid(ctx, issuerAddr, subject, 1, shifted, data)
	require.NoError(t, err)
	assert.True(t, valid)

	// The signature binds subject, topic and data.
	valid, err = svc.IsClaimValid(ctx, issuerAddr, subject, 2, sig, data)
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = svc.IsClaimValid(ctx, issuerAddr, subject, 1, sig, []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, valid)

	// Malformed signature bytes are an invalid claim, not an error.
	valid, err = svc.IsClaimValid(ctx, issuerAddr, subject, 1, []byte{0x01}, data)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIsClaimValid_SignerWithoutPurpose(t *testing.T) {
	svc, _ := newIssuerFixture(t)
	ctx := context.Background()

	// A well-formed signature from a key never registered on the issuer.
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	data := []byte("kyc passed")
	digest := issuer.ClaimDigest(subject, 1, data)
	prefixed := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	sig, err := crypto.Sign(prefixed.Bytes(), key)
	require.NoError(t, err)

	valid, err := svc.IsClaimValid(ctx, issuerAddr, subject, 1, sig, data)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRevokeClaimBySignature(t *testing.T) {
	svc, identities := newIssuerFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)
	require.NoError(t, identities.AddKey(ctx, issuerAddr, issuerAdmin,
		identity.AddressKeyID(signerAddr), identity.PurposeClaimSigner, identity.KeyTypeECDSA))

	data := []byte("kyc passed")
	digest := issuer.ClaimDigest(subject, 1, data)
	prefixed := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	sig, err := crypto.Sign(prefixed.Bytes(), key)
	require.NoError(t, err)

	// Only issuer key holders may revoke.
	err = svc.RevokeClaimBySignature(ctx, issuerAddr, subject, sig)
	require.ErrorIs(t, err, ErrNotIssuerKeyHolder)

	// The claim-signer key itself may revoke, not just management.
	require.NoError(t, svc.RevokeClaimBySignature(ctx, issuerAddr, signerAddr, sig))

	valid, err := svc.IsClaimValid(ctx, issuerAddr, subject, 1, sig, data)
	require.NoError(t, err)
	assert.False(t, valid)

	// Revocation is permanent; re-revoking is a conflict.
	err = svc.RevokeClaimBySignature(ctx, issuerAddr, issuerAdmin, sig)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataConflict))
}

func TestRevokeClaim_ByClaimID(t *testing.T) {
	svc, identities := newIssuerFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)
	require.NoError(t, identities.AddKey(ctx, issuerAddr, issuerAdmin,
		identity.AddressKeyID(signerAddr), identity.PurposeClaimSigner, identity.KeyTypeECDSA))

	holder := common.HexToAddress("0x0000000000000000000000000000000000000a02")
	holderWallet := common.HexToAddress("0x0000000000000000000000000000000000000a03")
	_, err = identities.CreateIdentity(ctx, holder, holderWallet)
	require.NoError(t, err)

	data := []byte("kyc passed")
	digest := issuer.ClaimDigest(holder, 1, data)
	prefixed := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	sig, err := crypto.Sign(prefixed.Bytes(), key)
	require.NoError(t, err)

	claimID, err := identities.AddClaim(ctx, holder, holderWallet, identity.Claim{
		Topic:     1,
		Scheme:    1,
		Issuer:    issuerAddr,
		Signature: sig,
		Data:      data,
	})
	require.NoError(t, err)

	// A foreign issuer cannot revoke someone else's claim.
	other := common.HexToAddress("0x00000000000000000000000000000000000000e9")
	err = svc.RevokeClaim(ctx, other, issuerAdmin, holder, claimID)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	require.NoError(t, svc.RevokeClaim(ctx, issuerAddr, issuerAdmin, holder, claimID))

	valid, err := svc.IsClaimValid(ctx, issuerAddr, holder, 1, sig, data)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIsClaimValidWithZKProof(t *testing.T) {
	svc, _ := newIssuerFixture(t)
	ctx := context.Background()
	backend := zkproof.NewCommitmentBackend()

	outputs := (&zkproof.PublicOutputs{
		Subject:        subject,
		CredentialType: credential.TypeKYC,
		ContentHash:    common.Hash{1},
		IssuedAt:       uint64(time.Now().Unix()),
	}).Encode()
	proof := backend.Prove(zkVKey, outputs)

	assert.True(t, svc.IsClaimValidWithZKProof(ctx, subject, uint64(credential.TypeKYC), outputs, proof))

	// Subject and topic must match the queried claim.
	assert.False(t, svc.IsClaimValidWithZKProof(ctx, issuerAdmin, uint64(credential.TypeKYC), outputs, proof))
	assert.False(t, svc.IsClaimValidWithZKProof(ctx, subject, uint64(credential.TypeAML), outputs, proof))

	// A forged proof fails verification, silently.
	assert.False(t, svc.IsClaimValidWithZKProof(ctx, subject, uint64(credential.TypeKYC), outputs, []byte("forged")))

	// Malformed outputs never error.
	assert.False(t, svc.IsClaimValidWithZKProof(ctx, subject, uint64(credential.TypeKYC), []byte{0x01}, proof))
}

func TestIsClaimValidWithZKProof_Expiry(t *testing.T) {
	svc, _ := newIssuerFixture(t)
	ctx := context.Background()
	backend := zkproof.NewCommitmentBackend()

	outputs := (&zkproof.PublicOutputs{
		Subject:        subject,
		CredentialType: credential.TypeKYC,
		ContentHash:    common.Hash{1},
		IssuedAt:       uint64(time.Now().Unix()),
		ExpiresAt:      uint64(time.Now().Add(time.Hour).Unix()),
	}).Encode()
	proof := backend.Prove(zkVKey, outputs)

	assert.True(t, svc.IsClaimValidWithZKProof(ctx, subject, uint64(credential.TypeKYC), outputs, proof))

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.False(t, svc.IsClaimValidWithZKProof(ctx, subject, uint64(credential.TypeKYC), outputs, proof))
}

func TestIsClaimValidWithZKProof_NoBackend(t *testing.T) {
	identities := identityservice.NewService(identitystore.NewMemoryStore(), zap.NewNop())
	svc := NewService(identities, store.NewMemoryRevocationStore(), nil, nil, zap.NewNop())

	outputs := (&zkproof.PublicOutputs{
		Subject:        subject,
		CredentialType: credential.TypeKYC,
		ContentHash:    common.Hash{1},
	}).Encode()

	assert.False(t, svc.IsClaimValidWithZKProof(context.Background(), subject, uint64(credential.TypeKYC), outputs, []byte("proof")))
}
