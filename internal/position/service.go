package position

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/logger"
)

// avgPriceScale bounds the precision of the weighted average entry price
const avgPriceScale = 18

// Service tracks margin positions: one-way mode, at most one OPEN position
// per (member, symbol). Reductions realize PnL into the symbol's quote coin
// through the wallet service.
// ⭐ SSOT: 포지션 전이는 이 서비스에서만
type Service struct {
	store   contracts.Store
	wallets *wallet.Service
	logger  *logger.Logger
}

// NewService creates a position service over the given store
func NewService(store contracts.Store, wallets *wallet.Service, log *logger.Logger) *Service {
	return &Service{store: store, wallets: wallets, logger: log}
}

// ListOpen returns a member's open positions
func (s *Service) ListOpen(ctx context.Context, memberID int) ([]*contracts.Position, error) {
	return s.store.Positions().ListOpenByMember(ctx, memberID)
}

// Apply routes one fill into the member's position on the symbol.
// No open position: open a new one in the fill's direction. Same direction:
// extend and recompute the weighted average price. Opposite direction: reduce,
// realizing PnL; when the fill exceeds the position, close it entirely and
// open a new position in the opposite direction with the remainder (a flip is
// close-all then open-new, never a single partial state).
func (s *Service) Apply(ctx context.Context, memberID int, symbol *contracts.Symbol, fillSide contracts.OrderSide, price, qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	pos, err := s.store.Positions().GetOpen(ctx, memberID, symbol.ID)
	if err != nil {
		return fmt.Errorf("failed to load position for member %d on %s: %w", memberID, symbol.ID, err)
	}

	if pos == nil {
		return s.open(ctx, memberID, symbol.ID, fillSide, price, qty)
	}

	if pos.Extends(fillSide) {
		return s.extend(ctx, pos, price, qty)
	}

	return s.reduce(ctx, pos, symbol, fillSide, price, qty)
}

// open creates a fresh position: BUY opens LONG, SELL opens SHORT
func (s *Service) open(ctx context.Context, memberID int, symbolID string, fillSide contracts.OrderSide, price, qty decimal.Decimal) error {
	side := contracts.PositionLong
	if fillSide == contracts.SideSell {
		side = contracts.PositionShort
	}

	now := time.Now().UTC()
	pos := &contracts.Position{
		MemberID:    memberID,
		SymbolID:    symbolID,
		Side:        side,
		Quantity:    qty,
		AvgPrice:    price,
		RealizedPnl: decimal.Zero,
		Status:      contracts.PositionOpen,
		OpenAt:      now,
	}

	if err := s.store.Positions().Create(ctx, pos); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"member": memberID,
		"symbol": symbolID,
		"side":   side,
		"qty":    qty,
		"price":  price,
	}).Debug("Position opened")

	return nil
}

// extend grows the position and re-weights the average entry price:
// (oldQty*oldAvg + qty*price) / (oldQty + qty)
func (s *Service) extend(ctx context.Context, pos *contracts.Position, price, qty decimal.Decimal) error {
	totalCost := pos.Quantity.Mul(pos.AvgPrice).Add(qty.Mul(price))
	totalQty := pos.Quantity.Add(qty)

	pos.AvgPrice = totalCost.DivRound(totalQty, avgPriceScale)
	pos.Quantity = totalQty

	return s.store.Positions().Update(ctx, pos)
}

// reduce shrinks, closes, or flips the position against an opposing fill
func (s *Service) reduce(ctx context.Context, pos *contracts.Position, symbol *contracts.Symbol, fillSide contracts.OrderSide, price, qty decimal.Decimal) error {
	if qty.LessThan(pos.Quantity) {
		// Partial close: average price is unchanged
		pnl := pnlFor(pos.Side, pos.AvgPrice, price, qty)
		pos.Quantity = pos.Quantity.Sub(qty)
		pos.RealizedPnl = pos.RealizedPnl.Add(pnl)

		if err := s.store.Positions().Update(ctx, pos); err != nil {
			return err
		}
		return s.realize(ctx, pos, symbol, pnl)
	}

	// Full close over the whole held quantity
	pnl := pnlFor(pos.Side, pos.AvgPrice, price, pos.Quantity)
	remainder := qty.Sub(pos.Quantity)

	pos.Quantity = decimal.Zero
	pos.RealizedPnl = pos.RealizedPnl.Add(pnl)
	pos.Status = contracts.PositionClosed
	pos.CloseAt = time.Now().UTC()

	if err := s.store.Positions().Update(ctx, pos); err != nil {
		return err
	}
	if err := s.realize(ctx, pos, symbol, pnl); err != nil {
		return err
	}

	// Direction flip: the excess re-opens on the other side at the fill price
	if remainder.GreaterThan(decimal.Zero) {
		return s.open(ctx, pos.MemberID, pos.SymbolID, fillSide, price, remainder)
	}
	return nil
}

// realize books PnL into the quote-coin wallet
func (s *Service) realize(ctx context.Context, pos *contracts.Position, symbol *contracts.Symbol, pnl decimal.Decimal) error {
	if err := s.wallets.ApplyRealized(ctx, pos.MemberID, symbol.QuoteCoinID, pnl); err != nil {
		return fmt.Errorf("failed to realize pnl for member %d: %w", pos.MemberID, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"member": pos.MemberID,
		"symbol": pos.SymbolID,
		"pnl":    pnl,
	}).Debug("Realized PnL")

	return nil
}

// pnlFor computes realized PnL for a reduction of qty at exitPrice.
// LONG: (exit - entry) * qty; SHORT: (entry - exit) * qty.
func pnlFor(side contracts.PositionSide, entryPrice, exitPrice, qty decimal.Decimal) decimal.Decimal {
	if side == contracts.PositionLong {
		return exitPrice.Sub(entryPrice).Mul(qty)
	}
	return entryPrice.Sub(exitPrice).Mul(qty)
}
