package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/badge/store"
	"github.com/harborfin/compliance-middleware/pkg/credential"
)

var (
	badgeOwner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	holder     = common.HexToAddress("0x0000000000000000000000000000000000000a01")
)

// mockRevoker records credential revocations.
type mockRevoker struct {
	revoked []common.Hash
	err     error
}

func (m *mockRevoker) RevokeCredential(ctx context.Context, caller common.Address, contentHash common.Hash) error {
	if m.err != nil {
		return m.err
	}
	m.revoked = append(m.revoked, contentHash)
	return nil
}

func newBadgeService(t *testing.T, revoker CredentialRevoker) *Service {
	t.Helper()
	return NewService(store.NewMemoryStore(), revoker, badgeOwner, zap.NewNop())
}

func TestMintCredential(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	id, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{1}, 0, "ipfs://meta")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	b, err := svc.GetBadge(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, holder, b.Holder)
	assert.Equal(t, credential.TypeKYC, b.CredentialType)
	assert.Equal(t, "ipfs://meta", b.MetadataRef)

	has, err := svc.HasValidCredential(ctx, holder, credential.TypeKYC)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMintCredential_MinterGated(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()
	minter := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	_, err := svc.MintCredential(ctx, minter, holder, credential.TypeKYC, common.Hash{1}, 0, "")
	require.ErrorIs(t, err, ErrNotMinter)

	require.NoError(t, svc.AddMinter(badgeOwner, minter))
	_, err = svc.MintCredential(ctx, minter, holder, credential.TypeKYC, common.Hash{1}, 0, "")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMinter(badgeOwner, minter))
	_, err = svc.MintCredential(ctx, minter, holder, credential.TypeAML, common.Hash{2}, 0, "")
	require.ErrorIs(t, err, ErrNotMinter)
}

func TestMintCredential_RejectsZeroInputs(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	_, err := svc.MintCredential(ctx, badgeOwner, common.Address{}, credential.TypeKYC, common.Hash{1}, 0, "")
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	_, err = svc.MintCredential(ctx, badgeOwner, holder, 0, common.Hash{1}, 0, "")
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestMintCredential_ContentHashUniqueness(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	_, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{1}, 0, "")
	require.NoError(t, err)

	// Same content hash, different holder and type: still refused.
	other := common.HexToAddress("0x0000000000000000000000000000000000000b02")
	_, err = svc.MintCredential(ctx, badgeOwner, other, credential.TypeAML, common.Hash{1}, 0, "")
	require.ErrorIs(t, err, ErrCredentialAlreadyExists)
}

func TestMintCredential_ReplacesHolderTypeSlot(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	first, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{1}, 0, "")
	require.NoError(t, err)

	second, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{2}, 0, "")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	// The old badge is gone; ids are never reused.
	_, err = svc.GetBadge(ctx, first)
	require.ErrorIs(t, err, ErrBadgeNotFound)

	badges, err := svc.HolderBadges(ctx, holder)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, second, badges[0].ID)

	// The retired badge's content hash stays burned.
	_, err = svc.MintCredential(ctx, badgeOwner, holder, credential.TypeAML, common.Hash{1}, 0, "")
	require.ErrorIs(t, err, ErrCredentialAlreadyExists)
}

func TestBatchMintCredentials_BestEffort(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	_, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{1}, 0, "")
	require.NoError(t, err)

	other := common.HexToAddress("0x0000000000000000000000000000000000000b02")
	results := svc.BatchMintCredentials(ctx, badgeOwner, []MintRequest{
		{Holder: other, CredentialType: credential.TypeKYC, ContentHash: common.Hash{2}},
		{Holder: other, CredentialType: credential.TypeAML, ContentHash: common.Hash{1}}, // duplicate hash
		{Holder: other, CredentialType: credential.TypeAML, ContentHash: common.Hash{3}},
	})
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrCredentialAlreadyExists)
	assert.NoError(t, results[2].Err)

	badges, err := svc.HolderBadges(ctx, other)
	require.NoError(t, err)
	assert.Len(t, badges, 2)
}

func TestTransfer_AlwaysRefused(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	id, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{1}, 0, "")
	require.NoError(t, err)

	other := common.HexToAddress("0x0000000000000000000000000000000000000b02")
	err = svc.Transfer(ctx, badgeOwner, holder, other, id)
	require.ErrorIs(t, err, ErrNonTransferable)
	// Even the holder cannot move it.
	err = svc.Transfer(ctx, holder, holder, other, id)
	require.ErrorIs(t, err, ErrNonTransferable)
}

func TestRevokeBadge(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	id, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{1}, 0, "")
	require.NoError(t, err)

	err = svc.RevokeBadge(ctx, holder, id)
	require.ErrorIs(t, err, ErrNotMinter)

	require.NoError(t, svc.RevokeBadge(ctx, badgeOwner, id))
	_, err = svc.GetBadge(ctx, id)
	require.ErrorIs(t, err, ErrBadgeNotFound)

	has, err := svc.HasValidCredential(ctx, holder, credential.TypeKYC)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRevokeWithCredential(t *testing.T) {
	revoker := &mockRevoker{}
	svc := newBadgeService(t, revoker)
	ctx := context.Background()

	id, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{7}, 0, "")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeWithCredential(ctx, badgeOwner, id))
	require.Len(t, revoker.revoked, 1)
	assert.Equal(t, common.Hash{7}, revoker.revoked[0])
}

func TestRevokeWithCredential_SurfacesRevokerFailure(t *testing.T) {
	revoker := &mockRevoker{err: errors.New("verifier unavailable")}
	svc := newBadgeService(t, revoker)
	ctx := context.Background()

	id, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{7}, 0, "")
	require.NoError(t, err)

	err = svc.RevokeWithCredential(ctx, badgeOwner, id)
	require.Error(t, err)

	// The badge burn is not rolled back.
	_, err = svc.GetBadge(ctx, id)
	require.ErrorIs(t, err, ErrBadgeNotFound)
}

func TestHasValidCredential_Expiry(t *testing.T) {
	svc := newBadgeService(t, nil)
	ctx := context.Background()

	expiry := uint64(time.Now().Add(time.Hour).Unix())
	_, err := svc.MintCredential(ctx, badgeOwner, holder, credential.TypeKYC, common.Hash{1}, expiry, "")
	require.NoError(t, err)

	has, err := svc.HasValidCredential(ctx, holder, credential.TypeKYC)
	require.NoError(t, err)
	assert.True(t, has)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	has, err = svc.HasValidCredential(ctx, holder, credential.TypeKYC)
	require.NoError(t, err)
	assert.False(t, has)
}
