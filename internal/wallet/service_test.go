package wallet_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/storage/memory"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/logger"
)

func newService(t *testing.T) (*wallet.Service, contracts.Store) {
	t.Helper()
	store := memory.New()
	err := store.Markets().UpsertCoin(context.Background(), &contracts.Coin{ID: "USDT", Name: "Tether", Decimals: 2})
	require.NoError(t, err)
	return wallet.NewService(store, logger.Nop()), store
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeposit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	w, err := svc.Deposit(ctx, 7, "USDT", d("1000"))
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("1000")))
	assert.True(t, w.Available.Equal(d("1000")))
	assert.True(t, w.Frozen().IsZero())

	entries, err := svc.GetEntries(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, contracts.ReasonDeposit, entries[0].Reason)
	assert.True(t, entries[0].Amount.Equal(d("1000")))
}

func TestDepositRejectsNonPositive(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", decimal.Zero)
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = svc.Deposit(ctx, 7, "USDT", d("-5"))
	assert.ErrorIs(t, err, contracts.ErrValidation)
}

func TestDepositUnknownCoin(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Deposit(context.Background(), 7, "DOGE", d("10"))
	assert.ErrorIs(t, err, contracts.ErrCoinNotFound)
}

func TestFreezeMovesAvailableOnly(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", d("1000"))
	require.NoError(t, err)

	require.NoError(t, svc.Freeze(ctx, 7, "USDT", d("900")))

	w, err := svc.GetWallet(ctx, 7, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("1000")))
	assert.True(t, w.Available.Equal(d("100")))
	assert.True(t, w.Frozen().Equal(d("900")))

	// Freeze is not a balance mutation, no ledger entry
	entries, err := svc.GetEntries(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFreezeInsufficientFunds(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", d("100"))
	require.NoError(t, err)

	err = svc.Freeze(ctx, 7, "USDT", d("100.01"))
	assert.ErrorIs(t, err, contracts.ErrInsufficientFunds)

	// Nothing moved
	w, err := svc.GetWallet(ctx, 7, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Available.Equal(d("100")))
}

func TestFreezeZeroIsNoop(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.Freeze(context.Background(), 7, "USDT", decimal.Zero))
}

func TestUnfreezeRestoresAvailable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", d("1000"))
	require.NoError(t, err)
	require.NoError(t, svc.Freeze(ctx, 7, "USDT", d("900")))
	require.NoError(t, svc.Unfreeze(ctx, 7, "USDT", d("900")))

	w, err := svc.GetWallet(ctx, 7, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Available.Equal(d("1000")))
	assert.True(t, w.Frozen().IsZero())
}

func TestUnfreezeBeyondFrozenFails(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", d("100"))
	require.NoError(t, err)
	require.NoError(t, svc.Freeze(ctx, 7, "USDT", d("50")))

	assert.Error(t, svc.Unfreeze(ctx, 7, "USDT", d("51")))
}

func TestDebitFrozenSpendsCollateral(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", d("1000"))
	require.NoError(t, err)
	require.NoError(t, svc.Freeze(ctx, 7, "USDT", d("900")))
	require.NoError(t, svc.DebitFrozen(ctx, 7, "USDT", d("890"), contracts.ReasonSpotBuyCost))

	w, err := svc.GetWallet(ctx, 7, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("110")))
	assert.True(t, w.Available.Equal(d("100")))
	assert.True(t, w.Frozen().Equal(d("10")))

	entries, err := svc.GetEntries(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, contracts.ReasonSpotBuyCost, entries[1].Reason)
	assert.True(t, entries[1].Amount.Equal(d("-890")))
}

func TestCreditAddsBoth(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, 7, "USDT", d("25"), contracts.ReasonSpotSellGet))

	w, err := svc.GetWallet(ctx, 7, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("25")))
	assert.True(t, w.Available.Equal(d("25")))
}

func TestApplyRealizedSignedPnl(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", d("100"))
	require.NoError(t, err)

	require.NoError(t, svc.ApplyRealized(ctx, 7, "USDT", d("-30")))

	w, err := svc.GetWallet(ctx, 7, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("70")))
	assert.True(t, w.Available.Equal(d("70")))

	// Zero PnL leaves no trace
	require.NoError(t, svc.ApplyRealized(ctx, 7, "USDT", decimal.Zero))
	entries, err := svc.GetEntries(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResetZeroesAndLogs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, 7, "USDT", d("500"))
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx, 7))

	w, err := svc.GetWallet(ctx, 7, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.Available.IsZero())

	entries, err := svc.GetEntries(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, contracts.ReasonWithdrawReset, entries[1].Reason)
	assert.True(t, entries[1].Amount.Equal(d("-500")))
}

func TestLazyWalletCreation(t *testing.T) {
	svc, _ := newService(t)

	w, err := svc.GetWallet(context.Background(), 42, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 42, w.MemberID)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.Available.IsZero())
}
