package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/orderbook"
	"github.com/wonny/helix/internal/position"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/logger"
)

// Matcher executes one taker order against the resting book.
// It owns fill bookkeeping and settlement; admission and collateral
// reservation live in the trading service. A Matcher instance is bound to
// one (possibly transactional) store and is not safe for concurrent walks on
// the same symbol; the caller holds the per-symbol lock.
// ⭐ SSOT: 체결과 정산은 이 엔진에서만
type Matcher struct {
	store     contracts.Store
	wallets   *wallet.Service
	positions *position.Service
	logger    *logger.Logger
}

// New creates a matcher over the given store
func New(store contracts.Store, wallets *wallet.Service, positions *position.Service, log *logger.Logger) *Matcher {
	return &Matcher{
		store:     store,
		wallets:   wallets,
		positions: positions,
		logger:    log,
	}
}

// Match walks eligible makers in price-time order and fills the taker until
// either side is exhausted. Trades are returned for post-commit broadcast.
//
// The taker is persisted once after the walk; makers are persisted per fill.
// The maker's posted price always governs the execution price; a limit buyer
// that crossed deeper gets the difference back per fill. Market buys skip the
// per-fill refund: their reservation is settled exactly by the trading
// service after the walk.
func (m *Matcher) Match(ctx context.Context, book *orderbook.Book, symbol *contracts.Symbol, taker *contracts.Order) ([]*contracts.Trade, error) {
	// Idempotent no-op on terminal orders
	if taker.IsTerminal() {
		return nil, nil
	}

	candidates := book.Candidates(taker.Side, taker.Price, taker.MemberID)
	if len(candidates) == 0 {
		// Normal outcome: the order rests in the book
		return nil, nil
	}

	var trades []*contracts.Trade

	for _, cand := range candidates {
		if taker.Status == contracts.StatusFilled {
			break
		}

		maker, err := m.store.Orders().Get(ctx, cand.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load maker %s: %w", cand.OrderID, err)
		}
		if !maker.IsActive() {
			// Stale book entry; drop it and move on
			book.Remove(maker.Side, cand.Price, cand.OrderID)
			continue
		}

		matchQty := decimal.Min(taker.Remaining(), maker.Remaining())
		if matchQty.LessThanOrEqual(decimal.Zero) {
			continue
		}
		matchPrice := maker.Price

		now := time.Now().UTC()
		trade := &contracts.Trade{
			ID:           uuid.New(),
			SymbolID:     taker.SymbolID,
			TakerOrderID: taker.ID,
			MakerOrderID: maker.ID,
			Price:        matchPrice,
			Quantity:     matchQty,
			TakerSide:    taker.Side,
			Mode:         taker.Mode,
			ExecutedAt:   now,
		}
		if err := m.store.Trades().Create(ctx, trade); err != nil {
			return nil, fmt.Errorf("failed to persist trade: %w", err)
		}

		taker.ApplyFill(matchPrice, matchQty, now)
		maker.ApplyFill(matchPrice, matchQty, now)

		if err := m.store.Orders().Update(ctx, maker); err != nil {
			return nil, fmt.Errorf("failed to update maker %s: %w", maker.ID, err)
		}

		if err := m.settle(ctx, symbol, taker, maker, matchPrice, matchQty); err != nil {
			return nil, err
		}

		// Refund the spot limit buyer's over-reservation for this fill.
		// Margin reservations are released at the order's own price in
		// settleMargin, so a refund here would double-release.
		if taker.Mode == contracts.ModeSpot &&
			taker.Type == contracts.TypeLimit &&
			taker.Side == contracts.SideBuy &&
			taker.Price.GreaterThan(matchPrice) {
			refund := taker.Price.Sub(matchPrice).Mul(matchQty)
			if err := m.wallets.Unfreeze(ctx, taker.MemberID, symbol.QuoteCoinID, refund); err != nil {
				return nil, fmt.Errorf("failed to refund over-reservation: %w", err)
			}
		}

		book.Reduce(maker.Side, matchPrice, maker.ID, matchQty)
		trades = append(trades, trade)

		m.logger.WithFields(map[string]interface{}{
			"symbol": symbol.ID,
			"price":  matchPrice,
			"qty":    matchQty,
			"taker":  taker.ID,
			"maker":  maker.ID,
		}).Debug("Trade executed")
	}

	if err := m.store.Orders().Update(ctx, taker); err != nil {
		return nil, fmt.Errorf("failed to update taker %s: %w", taker.ID, err)
	}

	return trades, nil
}

// settle applies one fill's balance effects to both parties
func (m *Matcher) settle(ctx context.Context, symbol *contracts.Symbol, taker, maker *contracts.Order, price, qty decimal.Decimal) error {
	if taker.Mode == contracts.ModeMargin {
		return m.settleMargin(ctx, symbol, taker, maker, price, qty)
	}
	return m.settleSpot(ctx, symbol, taker, maker, price, qty)
}

// settleSpot converts frozen collateral into spent funds and credits the
// received asset, symmetrically for taker and maker
func (m *Matcher) settleSpot(ctx context.Context, symbol *contracts.Symbol, taker, maker *contracts.Order, price, qty decimal.Decimal) error {
	cost := price.Mul(qty)

	for _, o := range []*contracts.Order{taker, maker} {
		if o.Side == contracts.SideBuy {
			// Buyer spends frozen quote, receives base
			if err := m.wallets.DebitFrozen(ctx, o.MemberID, symbol.QuoteCoinID, cost, contracts.ReasonSpotBuyCost); err != nil {
				return fmt.Errorf("spot buy settlement for order %s: %w", o.ID, err)
			}
			if err := m.wallets.Credit(ctx, o.MemberID, symbol.BaseCoinID, qty, contracts.ReasonSpotBuyGet); err != nil {
				return fmt.Errorf("spot buy settlement for order %s: %w", o.ID, err)
			}
		} else {
			// Seller spends frozen base, receives quote
			if err := m.wallets.DebitFrozen(ctx, o.MemberID, symbol.BaseCoinID, qty, contracts.ReasonSpotSellCost); err != nil {
				return fmt.Errorf("spot sell settlement for order %s: %w", o.ID, err)
			}
			if err := m.wallets.Credit(ctx, o.MemberID, symbol.QuoteCoinID, cost, contracts.ReasonSpotSellGet); err != nil {
				return fmt.Errorf("spot sell settlement for order %s: %w", o.ID, err)
			}
		}
	}
	return nil
}

// settleMargin routes the fill into each party's position independently and
// releases the consumed reservation. Ongoing position margin is not held
// here; margin maintenance belongs to a liquidation engine.
func (m *Matcher) settleMargin(ctx context.Context, symbol *contracts.Symbol, taker, maker *contracts.Order, price, qty decimal.Decimal) error {
	for _, o := range []*contracts.Order{taker, maker} {
		if err := m.positions.Apply(ctx, o.MemberID, symbol, o.Side, price, qty); err != nil {
			return fmt.Errorf("position update for order %s: %w", o.ID, err)
		}

		// Collateral was reserved at the order's own limit price
		release := o.Price.Mul(qty)
		if err := m.wallets.Unfreeze(ctx, o.MemberID, symbol.QuoteCoinID, release); err != nil {
			return fmt.Errorf("margin collateral release for order %s: %w", o.ID, err)
		}
	}
	return nil
}
