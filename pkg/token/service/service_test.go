package service

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/token/store"
)

var (
	tokenAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	tokenOwner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice      = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b02")
)

// mockRegistry maps wallets to verification status.
type mockRegistry struct {
	verified map[common.Address]bool
}

func (m *mockRegistry) IsVerified(ctx context.Context, wallet common.Address) (bool, error) {
	return m.verified[wallet], nil
}

// mockEngine is a func-field compliance engine with notification counters.
type mockEngine struct {
	CanTransferFunc func(ctx context.Context, from, to common.Address, amount decimal.Decimal) (bool, error)
	transferred     int
	created         int
	destroyed       int
	lastCaller      common.Address
}

func (m *mockEngine) CanTransfer(ctx context.Context, from, to common.Address, amount decimal.Decimal) (bool, error) {
	if m.CanTransferFunc != nil {
		return m.CanTransferFunc(ctx, from, to, amount)
	}
	return true, nil
}

func (m *mockEngine) Transferred(ctx context.Context, caller, from, to common.Address, amount decimal.Decimal) error {
	m.transferred++
	m.lastCaller = caller
	return nil
}

func (m *mockEngine) Created(ctx context.Context, caller, to common.Address, amount decimal.Decimal) error {
	m.created++
	m.lastCaller = caller
	return nil
}

func (m *mockEngine) Destroyed(ctx context.Context, caller, from common.Address, amount decimal.Decimal) error {
	m.destroyed++
	m.lastCaller = caller
	return nil
}

type tokenFixture struct {
	svc      *Service
	registry *mockRegistry
	engine   *mockEngine
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	registry := &mockRegistry{verified: map[common.Address]bool{alice: true, bob: true}}
	engine := &mockEngine{}
	svc := NewService(tokenAddr, tokenOwner, store.NewMemoryBalanceStore(), registry, engine, zap.NewNop())
	return &tokenFixture{svc: svc, registry: registry, engine: engine}
}

func (f *tokenFixture) balance(t *testing.T, holder common.Address) decimal.Decimal {
	t.Helper()
	bal, err := f.svc.BalanceOf(context.Background(), holder)
	require.NoError(t, err)
	return bal
}

func TestMint(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	err := f.svc.Mint(ctx, alice, alice, decimal.NewFromInt(100))
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))

	require.NoError(t, f.svc.Mint(ctx, tokenOwner, alice, decimal.NewFromInt(100)))
	assert.True(t, f.balance(t, alice).Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, f.engine.created)
	assert.Equal(t, tokenAddr, f.engine.lastCaller)
}

func TestMint_RecipientMustBeVerified(t *testing.T) {
	f := newTokenFixture(t)

	stranger := common.HexToAddress("0x0000000000000000000000000000000000000c03")
	err := f.svc.Mint(context.Background(), tokenOwner, stranger, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrRecipientNotVerified)
	assert.Equal(t, 0, f.engine.created)
}

func TestTransfer(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Mint(ctx, tokenOwner, alice, decimal.NewFromInt(100)))
	require.NoError(t, f.svc.Transfer(ctx, alice, bob, decimal.NewFromInt(30)))

	assert.True(t, f.balance(t, alice).Equal(decimal.NewFromInt(70)))
	assert.True(t, f.balance(t, bob).Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 1, f.engine.transferred)
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Mint(ctx, tokenOwner, alice, decimal.NewFromInt(10)))

	err := f.svc.Transfer(ctx, alice, bob, decimal.NewFromInt(20))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, f.balance(t, bob).IsZero())
	assert.Equal(t, 0, f.engine.transferred)
}

func TestTransfer_RecipientMustBeVerified(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Mint(ctx, tokenOwner, alice, decimal.NewFromInt(100)))

	f.registry.verified[bob] = false
	err := f.svc.Transfer(ctx, alice, bob, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrRecipientNotVerified)
	assert.True(t, f.balance(t, alice).Equal(decimal.NewFromInt(100)))
}

func TestTransfer_ComplianceRejectionLeavesBalances(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Mint(ctx, tokenOwner, alice, decimal.NewFromInt(100)))

	f.engine.CanTransferFunc = func(ctx context.Context, from, to common.Address, amount decimal.Decimal) (bool, error) {
		return false, nil
	}
	err := f.svc.Transfer(ctx, alice, bob, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrTransferNotCompliant)
	assert.True(t, f.balance(t, alice).Equal(decimal.NewFromInt(100)))
	assert.True(t, f.balance(t, bob).IsZero())
	assert.Equal(t, 0, f.engine.transferred)
}

func TestTransfer_RejectsZeroRecipientAndAmount(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	err := f.svc.Transfer(ctx, alice, common.Address{}, decimal.NewFromInt(1))
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	err = f.svc.Transfer(ctx, alice, bob, decimal.Zero)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestBurn_BypassesComplianceButNotifies(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Mint(ctx, tokenOwner, alice, decimal.NewFromInt(100)))

	// Even with every transfer rejected and the holder unverified, a
	// forced exit must go through.
	f.engine.CanTransferFunc = func(ctx context.Context, from, to common.Address, amount decimal.Decimal) (bool, error) {
		return false, nil
	}
	f.registry.verified[alice] = false

	require.NoError(t, f.svc.Burn(ctx, tokenOwner, alice, decimal.NewFromInt(40)))
	assert.True(t, f.balance(t, alice).Equal(decimal.NewFromInt(60)))
	assert.Equal(t, 1, f.engine.destroyed)
}

func TestBurn_OwnerOnlyAndBounded(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Mint(ctx, tokenOwner, alice, decimal.NewFromInt(10)))

	err := f.svc.Burn(ctx, alice, alice, decimal.NewFromInt(1))
	assert.True(t, apperrors.Is(err, apperrors.CategoryForbidden))

	err = f.svc.Burn(ctx, tokenOwner, alice, decimal.NewFromInt(20))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}
