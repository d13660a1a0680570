package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderStore persists orders
type OrderStore interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByMember(ctx context.Context, memberID int) ([]*Order, error)
	// ListOpen returns NEW and PARTIALLY_FILLED orders for one symbol and
	// mode; used to rebuild the in-memory book at startup.
	ListOpen(ctx context.Context, symbolID string, mode TradeMode) ([]*Order, error)
}

// TradeStore persists the append-only trade log
type TradeStore interface {
	Create(ctx context.Context, t *Trade) error
	ListBySymbol(ctx context.Context, symbolID string, limit int) ([]*Trade, error)
}

// WalletStore persists wallets and their audit entries.
// Get creates a zero wallet on first reference (lazy creation); wallets are
// never deleted.
type WalletStore interface {
	Get(ctx context.Context, memberID int, coinID string) (*Wallet, error)
	Save(ctx context.Context, w *Wallet) error
	ListByMember(ctx context.Context, memberID int) ([]*Wallet, error)
	AppendEntry(ctx context.Context, e *LedgerEntry) error
	ListEntries(ctx context.Context, memberID int) ([]*LedgerEntry, error)
}

// PositionStore persists margin positions.
// GetOpen returns (nil, nil) when the member has no open position on the
// symbol.
type PositionStore interface {
	Create(ctx context.Context, p *Position) error
	Update(ctx context.Context, p *Position) error
	GetOpen(ctx context.Context, memberID int, symbolID string) (*Position, error)
	ListOpenByMember(ctx context.Context, memberID int) ([]*Position, error)
}

// MarketStore holds static reference data: coins and symbols
type MarketStore interface {
	GetSymbol(ctx context.Context, id string) (*Symbol, error)
	ListSymbols(ctx context.Context) ([]*Symbol, error)
	UpsertSymbol(ctx context.Context, s *Symbol) error
	CoinExists(ctx context.Context, id string) (bool, error)
	ListCoins(ctx context.Context) ([]*Coin, error)
	UpsertCoin(ctx context.Context, c *Coin) error
}

// CandleStore persists OHLC bars.
// Get returns (nil, nil) when no bar exists for the bucket yet.
type CandleStore interface {
	Get(ctx context.Context, symbolID string, tf Timeframe, openTime time.Time) (*Candle, error)
	Upsert(ctx context.Context, c *Candle) error
	// List returns up to limit most recent candles in ascending open time.
	List(ctx context.Context, symbolID string, tf Timeframe, limit int) ([]*Candle, error)
}

// Store bundles every store behind one transactional boundary.
// InTx runs fn against stores bound to a single transaction; if fn returns an
// error nothing written inside it survives. One submit-and-match (or cancel)
// runs entirely inside one InTx call.
type Store interface {
	Orders() OrderStore
	Trades() TradeStore
	Wallets() WalletStore
	Positions() PositionStore
	Markets() MarketStore
	Candles() CandleStore
	InTx(ctx context.Context, fn func(Store) error) error
}
