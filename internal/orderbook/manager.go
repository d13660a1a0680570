package orderbook

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/helix/internal/contracts"
)

// Manager hands out one Book per (symbol, mode)
// ⭐ SSOT: 오더북 인스턴스는 여기서만 생성
type Manager struct {
	mu    sync.Mutex
	books map[string]*Book
}

// NewManager creates an empty book registry
func NewManager() *Manager {
	return &Manager{books: make(map[string]*Book)}
}

func bookKey(symbolID string, mode contracts.TradeMode) string {
	return symbolID + "/" + string(mode)
}

// Get returns the book for a symbol and mode, creating it on first use
func (m *Manager) Get(symbolID string, mode contracts.TradeMode) *Book {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := bookKey(symbolID, mode)
	b, ok := m.books[key]
	if !ok {
		b = New()
		m.books[key] = b
	}
	return b
}

// Rebuild replaces a book's contents from the persisted open orders.
// Called at startup for recovery and after an aborted matching transaction.
func (m *Manager) Rebuild(ctx context.Context, orders contracts.OrderStore, symbolID string, mode contracts.TradeMode) error {
	open, err := orders.ListOpen(ctx, symbolID, mode)
	if err != nil {
		return fmt.Errorf("failed to list open orders for %s: %w", symbolID, err)
	}

	b := New()
	for _, o := range open {
		b.Add(o.Side, &Entry{
			OrderID:   o.ID,
			MemberID:  o.MemberID,
			Price:     o.Price,
			Remaining: o.Remaining(),
			CreatedAt: o.CreatedAt,
		})
	}

	m.mu.Lock()
	m.books[bookKey(symbolID, mode)] = b
	m.mu.Unlock()

	return nil
}
