package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/stream"
	"github.com/wonny/helix/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// StreamHandler upgrades connections and pumps executed trades to them
type StreamHandler struct {
	hub      *stream.Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewStreamHandler(hub *stream.Hub, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Trades handles GET /ws/trades. An optional ?symbol= query narrows the
// stream to one symbol; without it every trade is relayed.
func (h *StreamHandler) Trades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	trades, cancel := h.hub.Subscribe()
	defer cancel()

	go h.readLoop(conn)
	h.writeLoop(conn, trades, symbol)
}

// readLoop drains client frames so close and pong handling work
func (h *StreamHandler) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}

func (h *StreamHandler) writeLoop(conn *websocket.Conn, trades <-chan *contracts.Trade, symbol string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case t, ok := <-trades:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if symbol != "" && t.SymbolID != symbol {
				continue
			}
			if err := conn.WriteJSON(t); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
