package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide is the direction of a leveraged position
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// PositionStatus is the lifecycle state of a position
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position aggregates the net effect of margin-mode fills for one member and
// symbol. One-way mode: at most one OPEN position per (member, symbol).
// RealizedPnl accumulates across partial closes; AvgPrice only moves when the
// position is extended, never when reduced.
type Position struct {
	ID          int64           `json:"id"`
	MemberID    int             `json:"member_id"`
	SymbolID    string          `json:"symbol_id"`
	Side        PositionSide    `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	RealizedPnl decimal.Decimal `json:"realized_pnl"`
	Status      PositionStatus  `json:"status"`
	OpenAt      time.Time       `json:"open_at"`
	CloseAt     time.Time       `json:"close_at"`
}

// Extends reports whether a fill on the given order side grows this position
func (p *Position) Extends(side OrderSide) bool {
	return (p.Side == PositionLong && side == SideBuy) ||
		(p.Side == PositionShort && side == SideSell)
}
