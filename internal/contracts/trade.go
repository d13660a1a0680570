package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is one execution between a taker and a maker order.
// The price is always the maker's posted price. A trade is an append-only
// fact: it is never updated or deleted once written.
type Trade struct {
	ID           uuid.UUID       `json:"id"`
	SymbolID     string          `json:"symbol_id"`
	TakerOrderID uuid.UUID       `json:"taker_order_id"`
	MakerOrderID uuid.UUID       `json:"maker_order_id"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	TakerSide    OrderSide       `json:"taker_side"`
	Mode         TradeMode       `json:"mode"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// Notional returns price x quantity in the quote currency
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
