package stream

import (
	"sync"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/pkg/logger"
)

const subscriberBuffer = 64

// Hub fans executed trades out to subscribers. Publishers never block: a
// subscriber that falls behind loses trades rather than stalling the
// matching path.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan *contracts.Trade
	nextID int
	logger *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[int]chan *contracts.Trade),
		logger: log,
	}
}

// Subscribe registers a new subscriber and returns its channel along with a
// cancel function. The channel is closed on cancel.
func (h *Hub) Subscribe() (<-chan *contracts.Trade, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan *contracts.Trade, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers a trade to every subscriber without blocking
func (h *Hub) Publish(trade *contracts.Trade) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- trade:
		default:
			h.logger.WithFields(map[string]interface{}{
				"subscriber": id,
				"trade_id":   trade.ID,
			}).Warn("Slow stream subscriber, trade dropped")
		}
	}
}

// Subscribers returns the current subscriber count
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
