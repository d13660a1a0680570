package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/engine"
	"github.com/wonny/helix/internal/orderbook"
	"github.com/wonny/helix/internal/position"
	"github.com/wonny/helix/internal/storage/memory"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/logger"
)

var btcusdt = &contracts.Symbol{
	ID:          "BTCUSDT",
	Name:        "BTC/USDT",
	BaseCoinID:  "BTC",
	QuoteCoinID: "USDT",
}

type fixture struct {
	store     contracts.Store
	wallets   *wallet.Service
	positions *position.Service
	matcher   *engine.Matcher
	book      *orderbook.Book
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
	require.NoError(t, store.Markets().UpsertSymbol(ctx, btcusdt))

	wallets := wallet.NewService(store, logger.Nop())
	positions := position.NewService(store, wallets, logger.Nop())
	return &fixture{
		store:     store,
		wallets:   wallets,
		positions: positions,
		matcher:   engine.New(store, wallets, positions, logger.Nop()),
		book:      orderbook.New(),
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newOrder persists an order the way the trading service would before a walk
func (f *fixture) newOrder(t *testing.T, member int, side contracts.OrderSide, typ contracts.OrderType, mode contracts.TradeMode, price, qty string) *contracts.Order {
	t.Helper()
	now := time.Now().UTC()
	o := &contracts.Order{
		ID:        uuid.New(),
		MemberID:  member,
		SymbolID:  btcusdt.ID,
		Side:      side,
		Type:      typ,
		Mode:      mode,
		Price:     d(price),
		Quantity:  d(qty),
		Status:    contracts.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.Orders().Create(context.Background(), o))
	return o
}

// rest puts a maker into the book the way the trading service does, with
// collateral already frozen
func (f *fixture) rest(t *testing.T, o *contracts.Order) {
	t.Helper()
	f.book.Add(o.Side, &orderbook.Entry{
		OrderID:   o.ID,
		MemberID:  o.MemberID,
		Price:     o.Price,
		Remaining: o.Remaining(),
		CreatedAt: o.CreatedAt,
	})
}

func (f *fixture) fund(t *testing.T, member int, coin, amount, frozen string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.wallets.Deposit(ctx, member, coin, d(amount))
	require.NoError(t, err)
	require.NoError(t, f.wallets.Freeze(ctx, member, coin, d(frozen)))
}

func TestMakerPriceGovernsAndConserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Y rests an ask 0.1 BTC @ 8900
	f.fund(t, 2, "BTC", "0.1", "0.1")
	maker := f.newOrder(t, 2, contracts.SideSell, contracts.TypeLimit, contracts.ModeSpot, "8900", "0.1")
	f.rest(t, maker)

	// X crosses with a limit buy 0.1 @ 9000, 900 USDT reserved
	f.fund(t, 1, "USDT", "1000", "900")
	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeSpot, "9000", "0.1")

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("8900")), "trade must execute at the maker's price")
	assert.True(t, trades[0].Quantity.Equal(d("0.1")))

	assert.Equal(t, contracts.StatusFilled, taker.Status)

	// Buyer: paid 890, got back the 10 over-reservation, received 0.1 BTC
	usdt, err := f.wallets.GetWallet(ctx, 1, "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.Balance.Equal(d("110")))
	assert.True(t, usdt.Available.Equal(d("110")))

	btc, err := f.wallets.GetWallet(ctx, 1, "BTC")
	require.NoError(t, err)
	assert.True(t, btc.Balance.Equal(d("0.1")))

	// Seller: gave 0.1 BTC, received 890 USDT
	sellerBTC, err := f.wallets.GetWallet(ctx, 2, "BTC")
	require.NoError(t, err)
	assert.True(t, sellerBTC.Balance.IsZero())

	sellerUSDT, err := f.wallets.GetWallet(ctx, 2, "USDT")
	require.NoError(t, err)
	assert.True(t, sellerUSDT.Balance.Equal(d("890")))

	// Maker is persisted as filled and drained from the book
	stored, err := f.store.Orders().Get(ctx, maker.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, stored.Status)
	_, ok := f.book.BestAsk()
	assert.False(t, ok)
}

func TestPriceTimePriorityAcrossWalk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 2, "BTC", "1", "1")
	first := f.newOrder(t, 2, contracts.SideSell, contracts.TypeLimit, contracts.ModeSpot, "100", "0.5")
	f.rest(t, first)
	f.fund(t, 3, "BTC", "1", "1")
	second := f.newOrder(t, 3, contracts.SideSell, contracts.TypeLimit, contracts.ModeSpot, "100", "0.5")
	f.rest(t, second)

	// Taker too small to fill both levels' worth
	f.fund(t, 1, "USDT", "100", "50")
	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeSpot, "100", "0.5")

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, first.ID, trades[0].MakerOrderID, "earlier maker at the same price fills first")

	stored, err := f.store.Orders().Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusNew, stored.Status)
}

func TestPartialFillStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 2, "BTC", "0.3", "0.3")
	maker := f.newOrder(t, 2, contracts.SideSell, contracts.TypeLimit, contracts.ModeSpot, "100", "0.3")
	f.rest(t, maker)

	f.fund(t, 1, "USDT", "100", "100")
	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeSpot, "100", "1")

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	assert.Equal(t, contracts.StatusPartiallyFilled, taker.Status)
	assert.True(t, taker.FilledQuantity.Equal(d("0.3")))
	assert.True(t, taker.Remaining().Equal(d("0.7")))

	stored, err := f.store.Orders().Get(ctx, maker.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, stored.Status)
}

func TestTerminalTakerIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeSpot, "100", "1")
	taker.Status = contracts.StatusCanceled

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSelfTradeExcluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 1, "BTC", "1", "1")
	own := f.newOrder(t, 1, contracts.SideSell, contracts.TypeLimit, contracts.ModeSpot, "100", "1")
	f.rest(t, own)

	f.fund(t, 1, "USDT", "100", "100")
	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeSpot, "100", "1")

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, contracts.StatusNew, taker.Status)
}

func TestStaleBookEntrySkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 2, "BTC", "1", "1")
	maker := f.newOrder(t, 2, contracts.SideSell, contracts.TypeLimit, contracts.ModeSpot, "100", "1")
	f.rest(t, maker)

	// The stored order was canceled but the book entry lingered
	maker.Status = contracts.StatusCanceled
	require.NoError(t, f.store.Orders().Update(ctx, maker))

	f.fund(t, 1, "USDT", "100", "100")
	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeSpot, "100", "1")

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	assert.Empty(t, trades)
	_, ok := f.book.BestAsk()
	assert.False(t, ok, "stale entry must be dropped from the book")
}

func TestMarginFillRoutesToPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Both sides reserve quote collateral at their own limit price
	f.fund(t, 2, "USDT", "1000", "100")
	maker := f.newOrder(t, 2, contracts.SideSell, contracts.TypeLimit, contracts.ModeMargin, "100", "1")
	f.rest(t, maker)

	f.fund(t, 1, "USDT", "1000", "100")
	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeMargin, "100", "1")

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	long, err := f.store.Positions().GetOpen(ctx, 1, btcusdt.ID)
	require.NoError(t, err)
	require.NotNil(t, long)
	assert.Equal(t, contracts.PositionLong, long.Side)
	assert.True(t, long.Quantity.Equal(d("1")))

	short, err := f.store.Positions().GetOpen(ctx, 2, btcusdt.ID)
	require.NoError(t, err)
	require.NotNil(t, short)
	assert.Equal(t, contracts.PositionShort, short.Side)

	// Consumed reservations are released on both sides
	for _, member := range []int{1, 2} {
		w, err := f.wallets.GetWallet(ctx, member, "USDT")
		require.NoError(t, err)
		assert.True(t, w.Available.Equal(d("1000")), "member %d", member)
		assert.True(t, w.Frozen().IsZero(), "member %d", member)
	}
}

func TestMarginCrossingBuyReleasesReservationOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 2, "USDT", "1000", "100")
	maker := f.newOrder(t, 2, contracts.SideSell, contracts.TypeLimit, contracts.ModeMargin, "100", "1")
	f.rest(t, maker)

	// Taker reserved at its own limit price, above the maker's
	f.fund(t, 1, "USDT", "1000", "110")
	taker := f.newOrder(t, 1, contracts.SideBuy, contracts.TypeLimit, contracts.ModeMargin, "110", "1")

	trades, err := f.matcher.Match(ctx, f.book, btcusdt, taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("100")))
	assert.Equal(t, contracts.StatusFilled, taker.Status)

	// Each side gets exactly its own reservation back, nothing more
	for _, member := range []int{1, 2} {
		w, err := f.wallets.GetWallet(ctx, member, "USDT")
		require.NoError(t, err)
		assert.True(t, w.Available.Equal(d("1000")), "member %d", member)
		assert.True(t, w.Frozen().IsZero(), "member %d", member)
		assert.True(t, w.Available.LessThanOrEqual(w.Balance), "member %d", member)
	}
}
