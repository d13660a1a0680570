package marketmaker

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/trading"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/config"
	"github.com/wonny/helix/pkg/logger"
)

const (
	quotesPerSide = 2
	qtyScale      = 8

	// Quote offsets from the reference price, as fractions
	minOffset = 0.001
	maxOffset = 0.005

	// Per-order notional range in quote currency
	minNotional = 10
	maxNotional = 100
)

// Bot keeps the books liquid: each tick it refreshes its quotes around an
// external reference price and tops up its own wallets. It trades through
// the same order path as everyone else.
type Bot struct {
	trading *trading.Service
	wallets *wallet.Service
	store   contracts.Store
	feed    PriceFeed
	cfg     config.ExchangeConfig
	logger  *logger.Logger
}

func NewBot(tr *trading.Service, w *wallet.Service, store contracts.Store, feed PriceFeed, cfg config.ExchangeConfig, log *logger.Logger) *Bot {
	return &Bot{
		trading: tr,
		wallets: w,
		store:   store,
		feed:    feed,
		cfg:     cfg,
		logger:  log,
	}
}

// Tick runs one full quoting cycle over every symbol
func (b *Bot) Tick(ctx context.Context) {
	symbols, err := b.store.Markets().ListSymbols(ctx)
	if err != nil {
		b.logger.WithError(err).Error("Bot failed to list symbols")
		return
	}

	if err := b.cancelStaleQuotes(ctx); err != nil {
		b.logger.WithError(err).Warn("Bot failed to withdraw previous quotes")
	}

	for _, sym := range symbols {
		if err := b.quoteSymbol(ctx, sym); err != nil {
			b.logger.WithError(err).WithField("symbol", sym.ID).Warn("Bot skipped symbol this tick")
		}
	}
}

// cancelStaleQuotes withdraws every resting bot order so each tick quotes a
// fresh book around the current reference price
func (b *Bot) cancelStaleQuotes(ctx context.Context) error {
	orders, err := b.trading.GetOrders(ctx, b.cfg.BotMemberID)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if !o.IsActive() {
			continue
		}
		if _, err := b.trading.Cancel(ctx, b.cfg.BotMemberID, o.ID); err != nil {
			b.logger.WithError(err).WithField("order_id", o.ID).Warn("Bot failed to cancel quote")
		}
	}
	return nil
}

func (b *Bot) quoteSymbol(ctx context.Context, sym *contracts.Symbol) error {
	ref, err := b.referencePrice(ctx, sym)
	if err != nil {
		return err
	}

	if err := b.topUp(ctx, sym); err != nil {
		return err
	}

	for i := 0; i < quotesPerSide; i++ {
		if err := b.placeQuote(ctx, sym, contracts.SideBuy, ref); err != nil {
			return err
		}
		if err := b.placeQuote(ctx, sym, contracts.SideSell, ref); err != nil {
			return err
		}
	}
	return nil
}

// referencePrice prefers the external feed and falls back to the book's
// midpoint when the feed is unavailable
func (b *Bot) referencePrice(ctx context.Context, sym *contracts.Symbol) (decimal.Decimal, error) {
	pair := sym.BaseCoinID + sym.QuoteCoinID
	price, err := b.feed.LastPrice(ctx, pair)
	if err == nil {
		return price, nil
	}
	b.logger.WithError(err).WithField("pair", pair).Debug("Feed unavailable, trying book midpoint")

	view, vErr := b.trading.GetOrderBook(ctx, sym.ID, contracts.ModeSpot, 1)
	if vErr == nil && len(view.Bids) > 0 && len(view.Asks) > 0 {
		mid := view.Bids[0].Price.Add(view.Asks[0].Price).Div(decimal.NewFromInt(2))
		return mid, nil
	}
	return decimal.Zero, fmt.Errorf("no reference price for %s: %w", sym.ID, err)
}

// topUp refills the bot's wallets when they run below half their budget
func (b *Bot) topUp(ctx context.Context, sym *contracts.Symbol) error {
	quoteBudget := b.cfg.BotQuoteBudget
	baseBudget := b.cfg.BotBaseBudget

	quote, err := b.wallets.GetWallet(ctx, b.cfg.BotMemberID, sym.QuoteCoinID)
	if err != nil {
		return err
	}
	if quote.Available.LessThan(quoteBudget.Div(decimal.NewFromInt(2))) {
		if _, err := b.wallets.Deposit(ctx, b.cfg.BotMemberID, sym.QuoteCoinID, quoteBudget); err != nil {
			return err
		}
	}

	base, err := b.wallets.GetWallet(ctx, b.cfg.BotMemberID, sym.BaseCoinID)
	if err != nil {
		return err
	}
	if base.Available.LessThan(baseBudget.Div(decimal.NewFromInt(2))) {
		if _, err := b.wallets.Deposit(ctx, b.cfg.BotMemberID, sym.BaseCoinID, baseBudget); err != nil {
			return err
		}
	}
	return nil
}

// placeQuote submits one limit order offset from the reference price
func (b *Bot) placeQuote(ctx context.Context, sym *contracts.Symbol, side contracts.OrderSide, ref decimal.Decimal) error {
	offset := decimal.NewFromFloat(minOffset + rand.Float64()*(maxOffset-minOffset))
	price := ref.Mul(decimal.NewFromInt(1).Sub(offset))
	if side == contracts.SideSell {
		price = ref.Mul(decimal.NewFromInt(1).Add(offset))
	}

	notional := decimal.NewFromFloat(minNotional + rand.Float64()*(maxNotional-minNotional))
	qty := notional.DivRound(price, qtyScale)
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	_, err := b.trading.Submit(ctx, b.cfg.BotMemberID, &contracts.OrderRequest{
		SymbolID: sym.ID,
		Side:     side,
		Type:     contracts.TypeLimit,
		Mode:     contracts.ModeSpot,
		Price:    price,
		Quantity: qty,
	})
	return err
}
