package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/engine"
	"github.com/wonny/helix/internal/orderbook"
	"github.com/wonny/helix/internal/position"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/config"
	"github.com/wonny/helix/pkg/logger"
	"github.com/wonny/helix/pkg/redis"
)

// marketBuySentinel stands in for a market buy's missing limit price so the
// candidate walk crosses every ask. It never reaches settlement; market
// orders settle at maker prices and are canceled after the walk.
var marketBuySentinel = decimal.NewFromInt(1_000_000_000)

// TradeSink receives executed trades after their transaction has committed
type TradeSink interface {
	Publish(trade *contracts.Trade)
}

// Service owns the order lifecycle: admission, collateral reservation,
// matching, resting, and cancelation. All state transitions for one
// (symbol, mode) book are serialized by a per-book lock and applied inside a
// single storage transaction.
// ⭐ SSOT: 주문 상태 전이는 여기서만
type Service struct {
	store  contracts.Store
	books  *orderbook.Manager
	cache  *redis.Cache
	sink   TradeSink
	cfg    config.ExchangeConfig
	logger *logger.Logger
	locks  *lockRegistry
}

// NewService creates the trading service. cache and sink are optional.
func NewService(store contracts.Store, books *orderbook.Manager, cache *redis.Cache, sink TradeSink, cfg config.ExchangeConfig, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		books:  books,
		cache:  cache,
		sink:   sink,
		cfg:    cfg,
		logger: log,
		locks:  newLockRegistry(),
	}
}

// RebuildBooks reloads every (symbol, mode) book from open orders in storage.
// Called on startup and after an aborted matching transaction.
func (s *Service) RebuildBooks(ctx context.Context) error {
	symbols, err := s.store.Markets().ListSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}
	for _, sym := range symbols {
		for _, mode := range []contracts.TradeMode{contracts.ModeSpot, contracts.ModeMargin} {
			if err := s.books.Rebuild(ctx, s.store.Orders(), sym.ID, mode); err != nil {
				return fmt.Errorf("failed to rebuild book %s/%s: %w", sym.ID, mode, err)
			}
		}
	}
	return nil
}

// Submit validates, reserves collateral for, matches, and (for limit orders)
// rests a new order. The returned order reflects its state after the walk.
func (s *Service) Submit(ctx context.Context, memberID int, req *contracts.OrderRequest) (*contracts.Order, error) {
	// Feature gates come before field validation
	if req.Mode == contracts.ModeMargin {
		if !s.cfg.MarginEnabled {
			return nil, fmt.Errorf("%w: margin trading is disabled", contracts.ErrUnsupported)
		}
		if req.Type == contracts.TypeMarket {
			return nil, fmt.Errorf("%w: margin market orders are not supported", contracts.ErrUnsupported)
		}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	symbol, err := s.store.Markets().GetSymbol(ctx, req.SymbolID)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(lockKey(symbol.ID, req.Mode))
	lock.Lock()
	defer lock.Unlock()

	book := s.books.Get(symbol.ID, req.Mode)

	price, coinID, reserved, err := s.reservationFor(book, symbol, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &contracts.Order{
		ID:        uuid.New(),
		MemberID:  memberID,
		SymbolID:  symbol.ID,
		Side:      req.Side,
		Type:      req.Type,
		Mode:      req.Mode,
		Price:     price,
		Quantity:  req.Quantity,
		Status:    contracts.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var trades []*contracts.Trade
	err = s.store.InTx(ctx, func(tx contracts.Store) error {
		wallets := wallet.NewService(tx, s.logger)
		positions := position.NewService(tx, wallets, s.logger)
		matcher := engine.New(tx, wallets, positions, s.logger)

		if err := wallets.Freeze(ctx, memberID, coinID, reserved); err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		var err error
		trades, err = matcher.Match(ctx, book, symbol, order)
		if err != nil {
			return err
		}

		if order.Type == contracts.TypeMarket {
			return s.finishMarket(ctx, tx, wallets, symbol, order, reserved)
		}
		if order.IsActive() {
			book.Add(order.Side, &orderbook.Entry{
				OrderID:   order.ID,
				MemberID:  order.MemberID,
				Price:     order.Price,
				Remaining: order.Remaining(),
				CreatedAt: order.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		// The book may hold effects of the rolled-back walk
		if rbErr := s.books.Rebuild(ctx, s.store.Orders(), symbol.ID, req.Mode); rbErr != nil {
			s.logger.WithError(rbErr).Error("Failed to rebuild order book after aborted match")
		}
		return nil, err
	}

	s.afterCommit(ctx, symbol.ID, req.Mode, trades)
	return order, nil
}

// finishMarket cancels a market order's unfilled remainder and returns the
// unspent reservation. A market order never rests in the book.
func (s *Service) finishMarket(ctx context.Context, tx contracts.Store, wallets *wallet.Service, symbol *contracts.Symbol, order *contracts.Order, reserved decimal.Decimal) error {
	if order.Side == contracts.SideBuy {
		// Fills settled at maker prices; everything not spent comes back
		leftover := reserved.Sub(order.CumQuoteQty)
		if leftover.IsPositive() {
			if err := wallets.Unfreeze(ctx, order.MemberID, symbol.QuoteCoinID, leftover); err != nil {
				return err
			}
		}
	} else if rem := order.Remaining(); rem.IsPositive() {
		if err := wallets.Unfreeze(ctx, order.MemberID, symbol.BaseCoinID, rem); err != nil {
			return err
		}
	}

	if order.Status != contracts.StatusFilled {
		order.Status = contracts.StatusCanceled
		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Update(ctx, order); err != nil {
			return fmt.Errorf("failed to cancel market remainder: %w", err)
		}
	}
	return nil
}

// Cancel withdraws a member's resting order and refunds its remaining
// reservation. Terminal orders cannot be canceled again.
func (s *Service) Cancel(ctx context.Context, memberID int, orderID uuid.UUID) (*contracts.Order, error) {
	existing, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.MemberID != memberID {
		return nil, contracts.ErrUnauthorized
	}

	symbol, err := s.store.Markets().GetSymbol(ctx, existing.SymbolID)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(lockKey(symbol.ID, existing.Mode))
	lock.Lock()
	defer lock.Unlock()

	var order *contracts.Order
	err = s.store.InTx(ctx, func(tx contracts.Store) error {
		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.IsTerminal() {
			return fmt.Errorf("%w: order %s is already %s", contracts.ErrInvalidState, orderID, order.Status)
		}

		wallets := wallet.NewService(tx, s.logger)
		if order.Mode == contracts.ModeSpot && order.Side == contracts.SideSell {
			if err := wallets.Unfreeze(ctx, order.MemberID, symbol.BaseCoinID, order.Remaining()); err != nil {
				return err
			}
		} else {
			refund := order.Price.Mul(order.Remaining())
			if err := wallets.Unfreeze(ctx, order.MemberID, symbol.QuoteCoinID, refund); err != nil {
				return err
			}
		}

		order.Status = contracts.StatusCanceled
		order.UpdatedAt = time.Now().UTC()
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.books.Get(symbol.ID, order.Mode).Remove(order.Side, order.Price, order.ID)
	s.invalidateDepth(ctx, symbol.ID, order.Mode)

	s.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"member":   memberID,
	}).Info("Order canceled")
	return order, nil
}

// GetOrders returns a member's orders, newest first
func (s *Service) GetOrders(ctx context.Context, memberID int) ([]*contracts.Order, error) {
	return s.store.Orders().ListByMember(ctx, memberID)
}

// GetTrades returns a symbol's recent trades, newest first
func (s *Service) GetTrades(ctx context.Context, symbolID string, limit int) ([]*contracts.Trade, error) {
	if _, err := s.store.Markets().GetSymbol(ctx, symbolID); err != nil {
		return nil, err
	}
	return s.store.Trades().ListBySymbol(ctx, symbolID, limit)
}

// OrderBookView is an aggregated depth snapshot
type OrderBookView struct {
	SymbolID  string                 `json:"symbol_id"`
	Mode      contracts.TradeMode    `json:"mode"`
	Bids      []orderbook.PriceLevel `json:"bids"`
	Asks      []orderbook.PriceLevel `json:"asks"`
	Timestamp time.Time              `json:"timestamp"`
}

// GetOrderBook returns aggregated depth for a symbol, served from cache when
// a fresh snapshot is available
func (s *Service) GetOrderBook(ctx context.Context, symbolID string, mode contracts.TradeMode, limit int) (*OrderBookView, error) {
	if _, err := s.store.Markets().GetSymbol(ctx, symbolID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.DepthLimit {
		limit = s.cfg.DepthLimit
	}

	key := redis.DepthKey(symbolID, string(mode))
	if s.cache != nil {
		var cached OrderBookView
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	bids, asks := s.books.Get(symbolID, mode).Depth(limit)
	view := &OrderBookView{
		SymbolID:  symbolID,
		Mode:      mode,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UTC(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, redis.TTLDepth); err != nil {
			s.logger.WithError(err).Warn("Failed to cache order book depth")
		}
	}
	return view, nil
}

// reservationFor resolves the order's stored price and the collateral to
// freeze. Spot buys and all margin orders reserve quote at the limit price;
// spot sells reserve the base quantity. Market buys reserve against the best
// ask with a slippage buffer.
func (s *Service) reservationFor(book *orderbook.Book, symbol *contracts.Symbol, req *contracts.OrderRequest) (price decimal.Decimal, coinID string, amount decimal.Decimal, err error) {
	if req.Type == contracts.TypeMarket {
		if req.Side == contracts.SideBuy {
			bestAsk, ok := book.BestAsk()
			if !ok {
				return price, "", amount, fmt.Errorf("%w: no asks for %s", contracts.ErrNoLiquidity, symbol.ID)
			}
			reserved := bestAsk.Mul(req.Quantity).Mul(s.cfg.MarketBuyBuffer)
			return marketBuySentinel, symbol.QuoteCoinID, reserved, nil
		}
		if _, ok := book.BestBid(); !ok {
			return price, "", amount, fmt.Errorf("%w: no bids for %s", contracts.ErrNoLiquidity, symbol.ID)
		}
		return decimal.Zero, symbol.BaseCoinID, req.Quantity, nil
	}

	if req.Mode == contracts.ModeSpot && req.Side == contracts.SideSell {
		return req.Price, symbol.BaseCoinID, req.Quantity, nil
	}
	return req.Price, symbol.QuoteCoinID, req.Price.Mul(req.Quantity), nil
}

func (s *Service) afterCommit(ctx context.Context, symbolID string, mode contracts.TradeMode, trades []*contracts.Trade) {
	if s.sink != nil {
		for _, t := range trades {
			s.sink.Publish(t)
		}
	}
	s.invalidateDepth(ctx, symbolID, mode)
}

func (s *Service) invalidateDepth(ctx context.Context, symbolID string, mode contracts.TradeMode) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, redis.DepthKey(symbolID, string(mode))); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate depth cache")
	}
}

func lockKey(symbolID string, mode contracts.TradeMode) string {
	return symbolID + "/" + string(mode)
}

func validateRequest(req *contracts.OrderRequest) error {
	switch req.Side {
	case contracts.SideBuy, contracts.SideSell:
	default:
		return fmt.Errorf("%w: invalid side %q", contracts.ErrValidation, req.Side)
	}
	switch req.Type {
	case contracts.TypeLimit, contracts.TypeMarket:
	default:
		return fmt.Errorf("%w: invalid order type %q", contracts.ErrValidation, req.Type)
	}
	switch req.Mode {
	case contracts.ModeSpot, contracts.ModeMargin:
	default:
		return fmt.Errorf("%w: invalid trade mode %q", contracts.ErrValidation, req.Mode)
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: quantity must be positive", contracts.ErrValidation)
	}
	if req.Type == contracts.TypeLimit && req.Price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: limit orders require a positive price", contracts.ErrValidation)
	}
	return nil
}
