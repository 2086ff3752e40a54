package service

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/credential"
	"github.com/harborfin/compliance-middleware/pkg/verifier/store"
	"github.com/harborfin/compliance-middleware/pkg/zkproof"
)

var (
	testVKey  = []byte("test-program-vkey")
	testOwner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func newTestService(t *testing.T, globalExpiration time.Duration) (*Service, *zkproof.CommitmentBackend) {
	t.Helper()
	backend := zkproof.NewCommitmentBackend()
	svc := NewService(store.NewMemoryCredentialStore(), backend, testVKey, testOwner, globalExpiration, zap.NewNop())
	return svc, backend
}

func testOutputs(subject common.Address, credType credential.Type, seed byte) *zkproof.PublicOutputs {
	return &zkproof.PublicOutputs{
		Subject:        subject,
		CredentialType: credType,
		ContentHash:    common.Hash{seed},
		IssuedAt:       uint64(time.Now().Add(-time.Hour).Unix()),
	}
}

func TestVerifyCredential_RecordsCredential(t *testing.T) {
	svc, backend := newTestService(t, 0)
	subject := common.HexToAddress("0x01")

	outputs := testOutputs(subject, credential.TypeKYC, 1).Encode()
	proof := backend.Prove(testVKey, outputs)

	hash, err := svc.VerifyCredential(context.Background(), outputs, proof)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{1}, hash)

	rec, err := svc.GetCredential(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, subject, rec.Subject)
	assert.Equal(t, credential.TypeKYC, rec.CredentialType)
	assert.True(t, rec.Valid)

	valid, err := svc.IsCredentialValid(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, valid)

	hashes, err := svc.SubjectCredentials(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	assert.Equal(t, hash, hashes[0])
}

func TestVerifyCredential_RejectsReplayedProof(t *testing.T) {
	svc, backend := newTestService(t, 0)

	outputs := testOutputs(common.HexToAddress("0x01"), credential.TypeKYC, 1).Encode()
	proof := backend.Prove(testVKey, outputs)

	_, err := svc.VerifyCredential(context.Background(), outputs, proof)
	require.NoError(t, err)

	_, err = svc.VerifyCredential(context.Background(), outputs, proof)
	require.ErrorIs(t, err, ErrProofAlreadyUsed)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataConflict))
}

func TestVerifyCredential_RejectsInvalidProof(t *testing.T) {
	svc, _ := newTestService(t, 0)

	outputs := testOutputs(common.HexToAddress("0x01"), credential.TypeKYC, 1).Encode()

	_, err := svc.VerifyCredential(context.Background(), outputs, []byte("garbage"))
	require.ErrorIs(t, err, ErrProofVerificationFailed)
}

func TestVerifyCredential_RejectsZeroSubject(t *testing.T) {
	svc, backend := newTestService(t, 0)

	outputs := testOutputs(common.Address{}, credential.TypeKYC, 1).Encode()
	proof := backend.Prove(testVKey, outputs)

	_, err := svc.VerifyCredential(context.Background(), outputs, proof)
	require.ErrorIs(t, err, ErrInvalidPublicValues)
}

func TestVerifyCredential_RejectsMalformedOutputs(t *testing.T) {
	svc, backend := newTestService(t, 0)

	outputs := []byte("too short")
	proof := backend.Prove(testVKey, outputs)

	_, err := svc.VerifyCredential(context.Background(), outputs, proof)
	require.ErrorIs(t, err, ErrInvalidPublicValues)
}

func TestVerifyCredential_RejectsDuplicateContentHash(t *testing.T) {
	svc, backend := newTestService(t, 0)

	// Same content hash committed by two different proofs: the second
	// proof is fresh (different issuedAt), so it passes the replay check
	// but must fall on content-hash uniqueness.
	first := testOutputs(common.HexToAddress("0x01"), credential.TypeKYC, 1)
	second := testOutputs(common.HexToAddress("0x02"), credential.TypeKYC, 1)
	second.IssuedAt = first.IssuedAt + 1

	_, err := svc.VerifyCredential(context.Background(), first.Encode(), backend.Prove(testVKey, first.Encode()))
	require.NoError(t, err)

	_, err = svc.VerifyCredential(context.Background(), second.Encode(), backend.Prove(testVKey, second.Encode()))
	require.ErrorIs(t, err, ErrCredentialAlreadyVerified)
}

func TestVerifyCredentialWithKey_SeparateReplaySet(t *testing.T) {
	svc, backend := newTestService(t, 0)

	first := testOutputs(common.HexToAddress("0x01"), credential.TypeKYC, 1)
	second := testOutputs(common.HexToAddress("0x02"), credential.TypeKYC, 2)

	_, err := svc.VerifyCredential(context.Background(), first.Encode(), backend.Prove(testVKey, first.Encode()))
	require.NoError(t, err)

	// A different key gets its own replay namespace; a fresh credential
	// under it verifies normally.
	otherKey := []byte("rotated-vkey")
	hash, err := svc.VerifyCredentialWithKey(context.Background(), otherKey, second.Encode(), backend.Prove(otherKey, second.Encode()))
	require.NoError(t, err)
	assert.Equal(t, common.Hash{2}, hash)

	// Replaying within the custom-key namespace is still rejected.
	_, err = svc.VerifyCredentialWithKey(context.Background(), otherKey, second.Encode(), backend.Prove(otherKey, second.Encode()))
	require.ErrorIs(t, err, ErrProofAlreadyUsed)
}

func TestIsCredentialValid_CredentialExpiry(t *testing.T) {
	svc, backend := newTestService(t, 0)

	outputs := testOutputs(common.HexToAddress("0x01"), credential.TypeKYC, 1)
	outputs.ExpiresAt = uint64(time.Now().Add(time.Hour).Unix())

	hash, err := svc.VerifyCredential(context.Background(), outputs.Encode(), backend.Prove(testVKey, outputs.Encode()))
	require.NoError(t, err)

	valid, err := svc.IsCredentialValid(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, valid)

	// Advance past the credential's own expiry.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	valid, err = svc.IsCredentialValid(context.Background(), hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIsCredentialValid_GlobalExpirationWindow(t *testing.T) {
	svc, backend := newTestService(t, 24*time.Hour)
	subject := common.HexToAddress("0x01")

	outputs := testOutputs(subject, credential.TypeKYC, 1)
	hash, err := svc.VerifyCredential(context.Background(), outputs.Encode(), backend.Prove(testVKey, outputs.Encode()))
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	// The global window applies to IsCredentialValid...
	valid, err := svc.IsCredentialValid(context.Background(), hash)
	require.NoError(t, err)
	assert.False(t, valid)

	// ...but not to the per-type check, which only honors the
	// credential's own expiry.
	has, err := svc.HasValidCredentialOfType(context.Background(), subject, credential.TypeKYC)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHasValidCredentialOfType(t *testing.T) {
	svc, backend := newTestService(t, 0)
	subject := common.HexToAddress("0x01")

	outputs := testOutputs(subject, credential.TypeAccreditedInvestor, 1)
	_, err := svc.VerifyCredential(context.Background(), outputs.Encode(), backend.Prove(testVKey, outputs.Encode()))
	require.NoError(t, err)

	has, err := svc.HasValidCredentialOfType(context.Background(), subject, credential.TypeAccreditedInvestor)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasValidCredentialOfType(context.Background(), subject, credential.TypeKYC)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = svc.HasValidCredentialOfType(context.Background(), common.HexToAddress("0x02"), credential.TypeAccreditedInvestor)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRevokeCredential(t *testing.T) {
	svc, backend := newTestService(t, 0)

	outputs := testOutputs(common.HexToAddress("0x01"), credential.TypeKYC, 1)
	hash, err := svc.VerifyCredential(context.Background(), outputs.Encode(), backend.Prove(testVKey, outputs.Encode()))
	require.NoError(t, err)

	// Only the owner may revoke.
	err = svc.RevokeCredential(context.Background(), common.HexToAddress("0xbb"), hash)
	require.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, svc.RevokeCredential(context.Background(), testOwner, hash))

	valid, err := svc.IsCredentialValid(context.Background(), hash)
	require.NoError(t, err)
	assert.False(t, valid)

	// Revocation is irreversible; a second revoke is a conflict.
	err = svc.RevokeCredential(context.Background(), testOwner, hash)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataConflict))
}

func TestRevokeCredential_UnknownHash(t *testing.T) {
	svc, _ := newTestService(t, 0)

	err := svc.RevokeCredential(context.Background(), testOwner, common.Hash{9})
	require.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestIsCredentialValid_UnknownHashIsInvalid(t *testing.T) {
	svc, _ := newTestService(t, 0)

	valid, err := svc.IsCredentialValid(context.Background(), common.Hash{9})
	require.NoError(t, err)
	assert.False(t, valid)
}
