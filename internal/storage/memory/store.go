// Package memory holds an in-process Store used by tests and by ephemeral
// mode. Transactions snapshot the whole state and restore it when fn fails;
// stored values are never mutated in place, so a snapshot is a shallow copy.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/helix/internal/contracts"
)

type state struct {
	orders    map[uuid.UUID]*contracts.Order
	trades    []*contracts.Trade
	wallets   map[string]*contracts.Wallet
	entries   []*contracts.LedgerEntry
	entrySeq  int64
	positions map[int64]*contracts.Position
	posSeq    int64
	symbols   map[string]*contracts.Symbol
	coins     map[string]*contracts.Coin
	candles   map[string]*contracts.Candle
}

func newState() *state {
	return &state{
		orders:    make(map[uuid.UUID]*contracts.Order),
		wallets:   make(map[string]*contracts.Wallet),
		positions: make(map[int64]*contracts.Position),
		symbols:   make(map[string]*contracts.Symbol),
		coins:     make(map[string]*contracts.Coin),
		candles:   make(map[string]*contracts.Candle),
	}
}

func (s *state) snapshot() *state {
	cp := &state{
		orders:    make(map[uuid.UUID]*contracts.Order, len(s.orders)),
		trades:    append([]*contracts.Trade(nil), s.trades...),
		wallets:   make(map[string]*contracts.Wallet, len(s.wallets)),
		entries:   append([]*contracts.LedgerEntry(nil), s.entries...),
		entrySeq:  s.entrySeq,
		positions: make(map[int64]*contracts.Position, len(s.positions)),
		posSeq:    s.posSeq,
		symbols:   make(map[string]*contracts.Symbol, len(s.symbols)),
		coins:     make(map[string]*contracts.Coin, len(s.coins)),
		candles:   make(map[string]*contracts.Candle, len(s.candles)),
	}
	for k, v := range s.orders {
		cp.orders[k] = v
	}
	for k, v := range s.wallets {
		cp.wallets[k] = v
	}
	for k, v := range s.positions {
		cp.positions[k] = v
	}
	for k, v := range s.symbols {
		cp.symbols[k] = v
	}
	for k, v := range s.coins {
		cp.coins[k] = v
	}
	for k, v := range s.candles {
		cp.candles[k] = v
	}
	return cp
}

// Store implements contracts.Store over process memory
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

func (s *Store) Orders() contracts.OrderStore       { return (*orderStore)(s) }
func (s *Store) Trades() contracts.TradeStore       { return (*tradeStore)(s) }
func (s *Store) Wallets() contracts.WalletStore     { return (*walletStore)(s) }
func (s *Store) Positions() contracts.PositionStore { return (*positionStore)(s) }
func (s *Store) Markets() contracts.MarketStore     { return (*marketStore)(s) }
func (s *Store) Candles() contracts.CandleStore     { return (*candleStore)(s) }

// InTx serializes the transaction and restores the pre-transaction state
// when fn returns an error
func (s *Store) InTx(ctx context.Context, fn func(contracts.Store) error) error {
	if s.inTx {
		// Nested call joins the enclosing transaction
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.st.snapshot()
	tx := &Store{mu: s.mu, st: s.st, inTx: true}
	if err := fn(tx); err != nil {
		s.st = before
		return err
	}
	return nil
}

func walletKey(memberID int, coinID string) string {
	return fmt.Sprintf("%d/%s", memberID, coinID)
}

func candleKey(symbolID string, tf contracts.Timeframe, openTime time.Time) string {
	return fmt.Sprintf("%s/%s/%d", symbolID, tf, openTime.Unix())
}

type orderStore Store

func (s *orderStore) Create(ctx context.Context, o *contracts.Order) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	cp := *o
	s.st.orders[o.ID] = &cp
	return nil
}

func (s *orderStore) Update(ctx context.Context, o *contracts.Order) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	if _, ok := s.st.orders[o.ID]; !ok {
		return fmt.Errorf("order %s: %w", o.ID, contracts.ErrOrderNotFound)
	}
	cp := *o
	s.st.orders[o.ID] = &cp
	return nil
}

func (s *orderStore) Get(ctx context.Context, id uuid.UUID) (*contracts.Order, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, contracts.ErrOrderNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *orderStore) ListByMember(ctx context.Context, memberID int) ([]*contracts.Order, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Order
	for _, o := range s.st.orders {
		if o.MemberID == memberID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *orderStore) ListOpen(ctx context.Context, symbolID string, mode contracts.TradeMode) ([]*contracts.Order, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Order
	for _, o := range s.st.orders {
		if o.SymbolID == symbolID && o.Mode == mode && o.IsActive() {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type tradeStore Store

func (s *tradeStore) Create(ctx context.Context, t *contracts.Trade) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	cp := *t
	s.st.trades = append(s.st.trades, &cp)
	return nil
}

func (s *tradeStore) ListBySymbol(ctx context.Context, symbolID string, limit int) ([]*contracts.Trade, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Trade
	for i := len(s.st.trades) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		t := s.st.trades[i]
		if t.SymbolID == symbolID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type walletStore Store

func (s *walletStore) Get(ctx context.Context, memberID int, coinID string) (*contracts.Wallet, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	w, ok := s.st.wallets[walletKey(memberID, coinID)]
	if !ok {
		return &contracts.Wallet{MemberID: memberID, CoinID: coinID}, nil
	}
	cp := *w
	return &cp, nil
}

func (s *walletStore) Save(ctx context.Context, w *contracts.Wallet) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	cp := *w
	s.st.wallets[walletKey(w.MemberID, w.CoinID)] = &cp
	return nil
}

func (s *walletStore) ListByMember(ctx context.Context, memberID int) ([]*contracts.Wallet, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Wallet
	for _, w := range s.st.wallets {
		if w.MemberID == memberID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoinID < out[j].CoinID })
	return out, nil
}

func (s *walletStore) AppendEntry(ctx context.Context, e *contracts.LedgerEntry) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	s.st.entrySeq++
	cp := *e
	cp.ID = s.st.entrySeq
	e.ID = cp.ID
	s.st.entries = append(s.st.entries, &cp)
	return nil
}

func (s *walletStore) ListEntries(ctx context.Context, memberID int) ([]*contracts.LedgerEntry, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.LedgerEntry
	for _, e := range s.st.entries {
		if e.MemberID == memberID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type positionStore Store

func (s *positionStore) Create(ctx context.Context, p *contracts.Position) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	s.st.posSeq++
	cp := *p
	cp.ID = s.st.posSeq
	p.ID = cp.ID
	s.st.positions[cp.ID] = &cp
	return nil
}

func (s *positionStore) Update(ctx context.Context, p *contracts.Position) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	if _, ok := s.st.positions[p.ID]; !ok {
		return fmt.Errorf("position %d not found", p.ID)
	}
	cp := *p
	s.st.positions[p.ID] = &cp
	return nil
}

func (s *positionStore) GetOpen(ctx context.Context, memberID int, symbolID string) (*contracts.Position, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	for _, p := range s.st.positions {
		if p.MemberID == memberID && p.SymbolID == symbolID && p.Status == contracts.PositionOpen {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *positionStore) ListOpenByMember(ctx context.Context, memberID int) ([]*contracts.Position, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Position
	for _, p := range s.st.positions {
		if p.MemberID == memberID && p.Status == contracts.PositionOpen {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SymbolID < out[j].SymbolID })
	return out, nil
}

type marketStore Store

func (s *marketStore) GetSymbol(ctx context.Context, id string) (*contracts.Symbol, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	sym, ok := s.st.symbols[id]
	if !ok {
		return nil, fmt.Errorf("symbol %s: %w", id, contracts.ErrSymbolNotFound)
	}
	cp := *sym
	return &cp, nil
}

func (s *marketStore) ListSymbols(ctx context.Context) ([]*contracts.Symbol, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Symbol
	for _, sym := range s.st.symbols {
		cp := *sym
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *marketStore) UpsertSymbol(ctx context.Context, sym *contracts.Symbol) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	cp := *sym
	s.st.symbols[sym.ID] = &cp
	return nil
}

func (s *marketStore) CoinExists(ctx context.Context, id string) (bool, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	_, ok := s.st.coins[id]
	return ok, nil
}

func (s *marketStore) ListCoins(ctx context.Context) ([]*contracts.Coin, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Coin
	for _, c := range s.st.coins {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *marketStore) UpsertCoin(ctx context.Context, c *contracts.Coin) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	cp := *c
	s.st.coins[c.ID] = &cp
	return nil
}

type candleStore Store

func (s *candleStore) Get(ctx context.Context, symbolID string, tf contracts.Timeframe, openTime time.Time) (*contracts.Candle, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	c, ok := s.st.candles[candleKey(symbolID, tf, openTime)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *candleStore) Upsert(ctx context.Context, c *contracts.Candle) error {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	cp := *c
	s.st.candles[candleKey(c.SymbolID, c.Timeframe, c.OpenTime)] = &cp
	return nil
}

func (s *candleStore) List(ctx context.Context, symbolID string, tf contracts.Timeframe, limit int) ([]*contracts.Candle, error) {
	(*Store)(s).lock()
	defer (*Store)(s).unlock()
	var out []*contracts.Candle
	for _, c := range s.st.candles {
		if c.SymbolID == symbolID && c.Timeframe == tf {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
