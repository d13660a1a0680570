package orderbook

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/helix/internal/contracts"
)

// Entry is one resting order as the book sees it. Remaining is the only
// mutable field; everything else is fixed at insertion.
type Entry struct {
	OrderID   uuid.UUID
	MemberID  int
	Price     decimal.Decimal
	Remaining decimal.Decimal
	CreatedAt time.Time
}

// level is one price point with its FIFO queue. Earlier-arrived orders sit at
// the front of the queue.
type level struct {
	price decimal.Decimal
	queue []*Entry
}

func (l *level) totalRemaining() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range l.queue {
		sum = sum.Add(e.Remaining)
	}
	return sum
}

// Book is the resting-order structure for one symbol and mode.
// Price-time priority is a structural property: asks are kept ascending,
// bids descending, and each level queues orders in arrival order.
// Callers serialize access per symbol; the internal lock only protects
// concurrent readers (depth queries) against the single writer.
type Book struct {
	mu   sync.RWMutex
	asks []*level // ascending price
	bids []*level // descending price
}

// New creates an empty book
func New() *Book {
	return &Book{}
}

// sideLevels returns the level slice holding orders of the given side
func (b *Book) sideLevels(side contracts.OrderSide) *[]*level {
	if side == contracts.SideSell {
		return &b.asks
	}
	return &b.bids
}

// search finds the index of price in levels, or the insertion point.
// asks are ascending, bids descending.
func search(levels []*level, price decimal.Decimal, ascending bool) (int, bool) {
	idx := sort.Search(len(levels), func(i int) bool {
		cmp := levels[i].price.Cmp(price)
		if ascending {
			return cmp >= 0
		}
		return cmp <= 0
	})
	if idx < len(levels) && levels[idx].price.Equal(price) {
		return idx, true
	}
	return idx, false
}

// Add inserts a resting order at the back of its price level's queue
func (b *Book) Add(side contracts.OrderSide, e *Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := b.sideLevels(side)
	idx, found := search(*levels, e.Price, side == contracts.SideSell)
	if found {
		(*levels)[idx].queue = append((*levels)[idx].queue, e)
		return
	}

	lv := &level{price: e.Price, queue: []*Entry{e}}
	*levels = append(*levels, nil)
	copy((*levels)[idx+1:], (*levels)[idx:])
	(*levels)[idx] = lv
}

// Remove deletes an order from its level, dropping the level when empty
func (b *Book) Remove(side contracts.OrderSide, price decimal.Decimal, orderID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(side, price, orderID)
}

func (b *Book) removeLocked(side contracts.OrderSide, price decimal.Decimal, orderID uuid.UUID) {
	levels := b.sideLevels(side)
	idx, found := search(*levels, price, side == contracts.SideSell)
	if !found {
		return
	}

	lv := (*levels)[idx]
	for i, e := range lv.queue {
		if e.OrderID == orderID {
			lv.queue = append(lv.queue[:i], lv.queue[i+1:]...)
			break
		}
	}
	if len(lv.queue) == 0 {
		*levels = append((*levels)[:idx], (*levels)[idx+1:]...)
	}
}

// Reduce shrinks an order's remaining quantity, removing it at zero
func (b *Book) Reduce(side contracts.OrderSide, price decimal.Decimal, orderID uuid.UUID, qty decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := b.sideLevels(side)
	idx, found := search(*levels, price, side == contracts.SideSell)
	if !found {
		return
	}

	for _, e := range (*levels)[idx].queue {
		if e.OrderID == orderID {
			e.Remaining = e.Remaining.Sub(qty)
			if e.Remaining.LessThanOrEqual(decimal.Zero) {
				b.removeLocked(side, price, orderID)
			}
			return
		}
	}
}

// BestAsk returns the lowest resting sell price
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].price, true
}

// BestBid returns the highest resting buy price
func (b *Book) BestBid() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].price, true
}

// Candidates returns, in match order, resting orders on the side opposite the
// taker that cross limitPrice, excluding the taker's own account (self-trades
// are disallowed at the query level). The returned entries are the book's own;
// callers mutate remaining through Reduce, never directly.
func (b *Book) Candidates(takerSide contracts.OrderSide, limitPrice decimal.Decimal, excludeMember int) []*Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var levels []*level
	crosses := func(p decimal.Decimal) bool { return false }
	if takerSide == contracts.SideBuy {
		// Walk asks from cheapest up while ask <= taker limit
		levels = b.asks
		crosses = func(p decimal.Decimal) bool { return p.LessThanOrEqual(limitPrice) }
	} else {
		// Walk bids from highest down while bid >= taker limit
		levels = b.bids
		crosses = func(p decimal.Decimal) bool { return p.GreaterThanOrEqual(limitPrice) }
	}

	var out []*Entry
	for _, lv := range levels {
		if !crosses(lv.price) {
			break
		}
		for _, e := range lv.queue {
			if e.MemberID == excludeMember {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

// PriceLevel is one aggregated row of the public order book
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Depth aggregates remaining quantity per price level: bids descending, asks
// ascending, at most limit rows each.
func (b *Book) Depth(limit int) (bids, asks []PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, lv := range b.bids {
		if len(bids) == limit {
			break
		}
		bids = append(bids, PriceLevel{Price: lv.price, Quantity: lv.totalRemaining()})
	}
	for _, lv := range b.asks {
		if len(asks) == limit {
			break
		}
		asks = append(asks, PriceLevel{Price: lv.price, Quantity: lv.totalRemaining()})
	}
	return bids, asks
}
