package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/logger"
)

// WalletHandler serves wallet balances, deposits and the ledger
type WalletHandler struct {
	wallets *wallet.Service
	logger  *logger.Logger
}

func NewWalletHandler(w *wallet.Service, log *logger.Logger) *WalletHandler {
	return &WalletHandler{wallets: w, logger: log}
}

// List handles GET /api/wallets
func (h *WalletHandler) List(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	wallets, err := h.wallets.GetWallets(r.Context(), member)
	if err != nil {
		writeError(w, err)
		return
	}
	if wallets == nil {
		wallets = []*contracts.Wallet{}
	}
	writeJSON(w, http.StatusOK, wallets)
}

type depositRequest struct {
	CoinID string          `json:"coin_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Deposit handles POST /api/wallets/deposit
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", contracts.ErrValidation))
		return
	}

	updated, err := h.wallets.Deposit(r.Context(), member, req.CoinID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Reset handles POST /api/wallets/reset
func (h *WalletHandler) Reset(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	if err := h.wallets.Reset(r.Context(), member); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Entries handles GET /api/wallets/entries
func (h *WalletHandler) Entries(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	entries, err := h.wallets.GetEntries(r.Context(), member)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*contracts.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
