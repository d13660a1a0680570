package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite returns the counter side
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes limit and market orders
type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

// TradeMode distinguishes spot and margin instruments
type TradeMode string

const (
	ModeSpot   TradeMode = "SPOT"
	ModeMargin TradeMode = "MARGIN"
)

// OrderStatus is the lifecycle state of an order.
// FILLED and CANCELED are terminal: a terminal order is never mutated again.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
)

// Order represents a buy/sell intent
// ⭐ SSOT: 주문 상태 전이는 engine/trading 서비스에서만 수행
type Order struct {
	ID             uuid.UUID       `json:"id"`
	MemberID       int             `json:"member_id"`
	SymbolID       string          `json:"symbol_id"`
	Side           OrderSide       `json:"side"`
	Type           OrderType       `json:"type"`
	Mode           TradeMode       `json:"mode"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	CumQuoteQty    decimal.Decimal `json:"cum_quote_qty"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Remaining returns the not-yet-filled quantity
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsTerminal reports whether the order can never change again
func (o *Order) IsTerminal() bool {
	return o.Status == StatusFilled || o.Status == StatusCanceled
}

// IsActive reports whether the order is eligible to rest in the book
func (o *Order) IsActive() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled
}

// AvgFillPrice derives the volume-weighted fill price from the cumulative
// quote quantity. Zero when nothing has filled.
func (o *Order) AvgFillPrice() decimal.Decimal {
	if o.FilledQuantity.IsZero() {
		return decimal.Zero
	}
	return o.CumQuoteQty.Div(o.FilledQuantity)
}

// ApplyFill books a fill of qty at price onto the order and recomputes the
// status. Status becomes FILLED exactly when filled_quantity == quantity.
func (o *Order) ApplyFill(price, qty decimal.Decimal, now time.Time) {
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.CumQuoteQty = o.CumQuoteQty.Add(price.Mul(qty))
	if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	o.UpdatedAt = now
}

// OrderRequest is the payload for submitting a new order
type OrderRequest struct {
	SymbolID string          `json:"symbol_id"`
	Side     OrderSide       `json:"side"`
	Type     OrderType       `json:"type"`
	Mode     TradeMode       `json:"mode"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}
