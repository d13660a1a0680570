package trading_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/orderbook"
	"github.com/wonny/helix/internal/storage/memory"
	"github.com/wonny/helix/internal/trading"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/config"
	"github.com/wonny/helix/pkg/logger"
)

type captureSink struct {
	trades []*contracts.Trade
}

func (c *captureSink) Publish(t *contracts.Trade) {
	c.trades = append(c.trades, t)
}

type fixture struct {
	store   contracts.Store
	trader  *trading.Service
	wallets *wallet.Service
	sink    *captureSink
}

func testConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		MarginEnabled:   true,
		MarketBuyBuffer: d("1.05"),
		DepthLimit:      10,
		BotMemberID:     1,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, c := range []*contracts.Coin{
		{ID: "BTC", Name: "Bitcoin", Decimals: 8},
		{ID: "USDT", Name: "Tether", Decimals: 2},
	} {
		require.NoError(t, store.Markets().UpsertCoin(ctx, c))
	}
	require.NoError(t, store.Markets().UpsertSymbol(ctx, &contracts.Symbol{
		ID: "BTCUSDT", Name: "BTC/USDT", BaseCoinID: "BTC", QuoteCoinID: "USDT",
	}))

	sink := &captureSink{}
	trader := trading.NewService(store, orderbook.NewManager(), nil, sink, testConfig(), logger.Nop())
	return &fixture{
		store:   store,
		trader:  trader,
		wallets: wallet.NewService(store, logger.Nop()),
		sink:    sink,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) deposit(t *testing.T, member int, coin, amount string) {
	t.Helper()
	_, err := f.wallets.Deposit(context.Background(), member, coin, d(amount))
	require.NoError(t, err)
}

func limitReq(side contracts.OrderSide, price, qty string) *contracts.OrderRequest {
	return &contracts.OrderRequest{
		SymbolID: "BTCUSDT",
		Side:     side,
		Type:     contracts.TypeLimit,
		Mode:     contracts.ModeSpot,
		Price:    d(price),
		Quantity: d(qty),
	}
}

func marketReq(side contracts.OrderSide, qty string) *contracts.OrderRequest {
	return &contracts.OrderRequest{
		SymbolID: "BTCUSDT",
		Side:     side,
		Type:     contracts.TypeMarket,
		Mode:     contracts.ModeSpot,
		Quantity: d(qty),
	}
}

func TestSubmitRestingLimitBuy(t *testing.T) {
	// Scenario: 1000 USDT available, limit buy 0.1 @ 9000 rests
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, 1, "USDT", "1000")

	order, err := f.trader.Submit(ctx, 1, limitReq(contracts.SideBuy, "9000", "0.1"))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusNew, order.Status)

	w, err := f.wallets.GetWallet(ctx, 1, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("1000")))
	assert.True(t, w.Available.Equal(d("100")))
	assert.True(t, w.Frozen().Equal(d("900")))

	view, err := f.trader.GetOrderBook(ctx, "BTCUSDT", contracts.ModeSpot, 10)
	require.NoError(t, err)
	require.Len(t, view.Bids, 1)
	assert.True(t, view.Bids[0].Price.Equal(d("9000")))
}

func TestSubmitCrossingBuySettlesAtMakerPrice(t *testing.T) {
	// Scenario: resting ask 0.1 @ 8900, crossing buy 0.1 @ 9000
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 2, "BTC", "0.1")
	_, err := f.trader.Submit(ctx, 2, limitReq(contracts.SideSell, "8900", "0.1"))
	require.NoError(t, err)

	f.deposit(t, 1, "USDT", "1000")
	order, err := f.trader.Submit(ctx, 1, limitReq(contracts.SideBuy, "9000", "0.1"))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, order.Status)

	trades, err := f.trader.GetTrades(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("8900")))

	// Buyer paid 890 and got the 10 over-reservation back
	usdt, err := f.wallets.GetWallet(ctx, 1, "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.Balance.Equal(d("110")))
	assert.True(t, usdt.Available.Equal(d("110")))

	btc, err := f.wallets.GetWallet(ctx, 1, "BTC")
	require.NoError(t, err)
	assert.True(t, btc.Balance.Equal(d("0.1")))

	sellerUSDT, err := f.wallets.GetWallet(ctx, 2, "USDT")
	require.NoError(t, err)
	assert.True(t, sellerUSDT.Balance.Equal(d("890")))

	// Post-commit publication
	require.Len(t, f.sink.trades, 1)
}

func TestCancelPartiallyFilledSell(t *testing.T) {
	// Scenario: limit sell 5 filled 2 @ 50, cancel releases the remaining 3
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 2, "USDT", "100")
	_, err := f.trader.Submit(ctx, 2, limitReq(contracts.SideBuy, "50", "2"))
	require.NoError(t, err)

	f.deposit(t, 1, "BTC", "5")
	order, err := f.trader.Submit(ctx, 1, limitReq(contracts.SideSell, "50", "5"))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusPartiallyFilled, order.Status)

	canceled, err := f.trader.Cancel(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCanceled, canceled.Status)

	btc, err := f.wallets.GetWallet(ctx, 1, "BTC")
	require.NoError(t, err)
	assert.True(t, btc.Balance.Equal(d("3")))
	assert.True(t, btc.Available.Equal(d("3")))
	assert.True(t, btc.Frozen().IsZero())

	// A second cancel fails and moves nothing
	_, err = f.trader.Cancel(ctx, 1, order.ID)
	assert.ErrorIs(t, err, contracts.ErrInvalidState)
	btc, err = f.wallets.GetWallet(ctx, 1, "BTC")
	require.NoError(t, err)
	assert.True(t, btc.Available.Equal(d("3")))
}

func TestCancelChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 1, "USDT", "100")
	order, err := f.trader.Submit(ctx, 1, limitReq(contracts.SideBuy, "50", "1"))
	require.NoError(t, err)

	// Unknown order
	_, err = f.trader.Cancel(ctx, 1, uuid.New())
	assert.ErrorIs(t, err, contracts.ErrOrderNotFound)

	// Someone else's order
	_, err = f.trader.Cancel(ctx, 2, order.ID)
	assert.ErrorIs(t, err, contracts.ErrUnauthorized)

	// Terminal order
	_, err = f.trader.Cancel(ctx, 1, order.ID)
	require.NoError(t, err)
	_, err = f.trader.Cancel(ctx, 1, order.ID)
	assert.ErrorIs(t, err, contracts.ErrInvalidState)
}

func TestMarketBuyNeverRests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 2, "BTC", "1")
	_, err := f.trader.Submit(ctx, 2, limitReq(contracts.SideSell, "100", "1"))
	require.NoError(t, err)

	f.deposit(t, 1, "USDT", "1000")
	// Asks only cover 1; request 2
	order, err := f.trader.Submit(ctx, 1, marketReq(contracts.SideBuy, "2"))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCanceled, order.Status)
	assert.True(t, order.FilledQuantity.Equal(d("1")))

	// Exactly the executed notional was spent; the rest of the buffered
	// reservation came back
	usdt, err := f.wallets.GetWallet(ctx, 1, "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.Balance.Equal(d("900")))
	assert.True(t, usdt.Available.Equal(d("900")))
	assert.True(t, usdt.Frozen().IsZero())

	// Nothing rests
	view, err := f.trader.GetOrderBook(ctx, "BTCUSDT", contracts.ModeSpot, 10)
	require.NoError(t, err)
	assert.Empty(t, view.Bids)
	assert.Empty(t, view.Asks)
}

func TestMarketBuyFullFillRefundsBuffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 2, "BTC", "1")
	_, err := f.trader.Submit(ctx, 2, limitReq(contracts.SideSell, "100", "1"))
	require.NoError(t, err)

	f.deposit(t, 1, "USDT", "100")
	// Reserves 0.5 * 100 * 1.05 = 52.5, spends 50
	order, err := f.trader.Submit(ctx, 1, marketReq(contracts.SideBuy, "0.5"))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, order.Status)

	usdt, err := f.wallets.GetWallet(ctx, 1, "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.Balance.Equal(d("50")))
	assert.True(t, usdt.Available.Equal(d("50")))
}

func TestMarketSellUnfreezesRemainder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 2, "USDT", "100")
	_, err := f.trader.Submit(ctx, 2, limitReq(contracts.SideBuy, "100", "0.5"))
	require.NoError(t, err)

	f.deposit(t, 1, "BTC", "2")
	order, err := f.trader.Submit(ctx, 1, marketReq(contracts.SideSell, "2"))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCanceled, order.Status)
	assert.True(t, order.FilledQuantity.Equal(d("0.5")))

	btc, err := f.wallets.GetWallet(ctx, 1, "BTC")
	require.NoError(t, err)
	assert.True(t, btc.Balance.Equal(d("1.5")))
	assert.True(t, btc.Available.Equal(d("1.5")))
}

func TestMarketOrderNoLiquidity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, 1, "USDT", "1000")
	f.deposit(t, 1, "BTC", "1")

	_, err := f.trader.Submit(ctx, 1, marketReq(contracts.SideBuy, "1"))
	assert.ErrorIs(t, err, contracts.ErrNoLiquidity)

	_, err = f.trader.Submit(ctx, 1, marketReq(contracts.SideSell, "1"))
	assert.ErrorIs(t, err, contracts.ErrNoLiquidity)
}

func TestInsufficientFundsPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.trader.Submit(ctx, 1, limitReq(contracts.SideBuy, "9000", "0.1"))
	assert.ErrorIs(t, err, contracts.ErrInsufficientFunds)

	orders, err := f.trader.GetOrders(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, orders)

	view, err := f.trader.GetOrderBook(ctx, "BTCUSDT", contracts.ModeSpot, 10)
	require.NoError(t, err)
	assert.Empty(t, view.Bids)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.trader.Submit(ctx, 1, limitReq(contracts.SideBuy, "100", "0"))
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = f.trader.Submit(ctx, 1, limitReq(contracts.SideBuy, "0", "1"))
	assert.ErrorIs(t, err, contracts.ErrValidation)

	req := limitReq(contracts.SideBuy, "100", "1")
	req.Side = "SIDEWAYS"
	_, err = f.trader.Submit(ctx, 1, req)
	assert.ErrorIs(t, err, contracts.ErrValidation)

	req = limitReq(contracts.SideBuy, "100", "1")
	req.SymbolID = "NOPE"
	_, err = f.trader.Submit(ctx, 1, req)
	assert.ErrorIs(t, err, contracts.ErrSymbolNotFound)
}

func TestMarginGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, 1, "USDT", "1000")

	req := limitReq(contracts.SideBuy, "100", "1")
	req.Mode = contracts.ModeMargin
	req.Type = contracts.TypeMarket
	_, err := f.trader.Submit(ctx, 1, req)
	assert.ErrorIs(t, err, contracts.ErrUnsupported, "margin market orders are not supported")

	disabled := trading.NewService(f.store, orderbook.NewManager(), nil, nil,
		config.ExchangeConfig{MarketBuyBuffer: d("1.05"), DepthLimit: 10, BotMemberID: 1}, logger.Nop())
	req = limitReq(contracts.SideBuy, "100", "1")
	req.Mode = contracts.ModeMargin
	_, err = disabled.Submit(ctx, 1, req)
	assert.ErrorIs(t, err, contracts.ErrUnsupported)
}

func TestMarginRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 1, "USDT", "1000")
	f.deposit(t, 2, "USDT", "1000")

	short := limitReq(contracts.SideSell, "100", "1")
	short.Mode = contracts.ModeMargin
	_, err := f.trader.Submit(ctx, 2, short)
	require.NoError(t, err)

	long := limitReq(contracts.SideBuy, "100", "1")
	long.Mode = contracts.ModeMargin
	order, err := f.trader.Submit(ctx, 1, long)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, order.Status)

	p, err := f.store.Positions().GetOpen(ctx, 1, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, contracts.PositionLong, p.Side)

	// Margin and spot books are independent
	view, err := f.trader.GetOrderBook(ctx, "BTCUSDT", contracts.ModeSpot, 10)
	require.NoError(t, err)
	assert.Empty(t, view.Asks)
}

func TestRebuildBooksFromStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 2, "BTC", "1")
	_, err := f.trader.Submit(ctx, 2, limitReq(contracts.SideSell, "100", "1"))
	require.NoError(t, err)

	// A fresh service over the same storage starts with empty books
	restarted := trading.NewService(f.store, orderbook.NewManager(), nil, nil, testConfig(), logger.Nop())
	require.NoError(t, restarted.RebuildBooks(ctx))

	view, err := restarted.GetOrderBook(ctx, "BTCUSDT", contracts.ModeSpot, 10)
	require.NoError(t, err)
	require.Len(t, view.Asks, 1)
	assert.True(t, view.Asks[0].Price.Equal(d("100")))

	// And matching against the rebuilt book works
	f.deposit(t, 1, "USDT", "100")
	order, err := restarted.Submit(ctx, 1, limitReq(contracts.SideBuy, "100", "1"))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, order.Status)
}

func TestMarginCrossingBuySettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(t, 1, "USDT", "1000")
	f.deposit(t, 2, "USDT", "1000")

	short := limitReq(contracts.SideSell, "100", "1")
	short.Mode = contracts.ModeMargin
	_, err := f.trader.Submit(ctx, 2, short)
	require.NoError(t, err)

	// Buyer crosses above the resting ask; the fill executes at 100 and the
	// buyer's 110 reservation is released exactly once
	long := limitReq(contracts.SideBuy, "110", "1")
	long.Mode = contracts.ModeMargin
	order, err := f.trader.Submit(ctx, 1, long)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, order.Status)
	assert.True(t, order.AvgFillPrice().Equal(d("100")))

	for _, member := range []int{1, 2} {
		w, err := f.wallets.GetWallet(ctx, member, "USDT")
		require.NoError(t, err)
		assert.True(t, w.Available.LessThanOrEqual(w.Balance), "member %d", member)
		assert.True(t, w.Available.Equal(d("1000")), "member %d", member)
		assert.True(t, w.Frozen().IsZero(), "member %d", member)
	}
}

func TestMarginGateBeforeFieldValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	disabled := trading.NewService(f.store, orderbook.NewManager(), nil, nil,
		config.ExchangeConfig{MarketBuyBuffer: d("1.05"), DepthLimit: 10, BotMemberID: 1}, logger.Nop())

	// Even a malformed margin request is refused by the gate, not by
	// field validation
	req := limitReq(contracts.SideBuy, "100", "0")
	req.Mode = contracts.ModeMargin
	_, err := disabled.Submit(ctx, 1, req)
	assert.ErrorIs(t, err, contracts.ErrUnsupported)
}
