package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/helix/internal/candle"
	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/trading"
	"github.com/wonny/helix/pkg/logger"
)

const defaultTradeLimit = 100

// MarketHandler serves public market data: depth, trades and candles
type MarketHandler struct {
	trading *trading.Service
	candles *candle.Aggregator
	logger  *logger.Logger
}

func NewMarketHandler(tr *trading.Service, candles *candle.Aggregator, log *logger.Logger) *MarketHandler {
	return &MarketHandler{trading: tr, candles: candles, logger: log}
}

// OrderBook handles GET /api/orderbook/{symbol}
func (h *MarketHandler) OrderBook(w http.ResponseWriter, r *http.Request) {
	symbolID := mux.Vars(r)["symbol"]
	mode := contracts.ModeSpot
	if r.URL.Query().Get("mode") == string(contracts.ModeMargin) {
		mode = contracts.ModeMargin
	}

	view, err := h.trading.GetOrderBook(r.Context(), symbolID, mode, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Trades handles GET /api/trades/{symbol}
func (h *MarketHandler) Trades(w http.ResponseWriter, r *http.Request) {
	symbolID := mux.Vars(r)["symbol"]

	trades, err := h.trading.GetTrades(r.Context(), symbolID, queryInt(r, "limit", defaultTradeLimit))
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []*contracts.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// Candles handles GET /api/candles/{symbol}
func (h *MarketHandler) Candles(w http.ResponseWriter, r *http.Request) {
	symbolID := mux.Vars(r)["symbol"]
	tf := contracts.ParseTimeframe(r.URL.Query().Get("tf"))

	candles, err := h.candles.List(r.Context(), symbolID, tf, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	if candles == nil {
		candles = []*contracts.Candle{}
	}
	writeJSON(w, http.StatusOK, candles)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
