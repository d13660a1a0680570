package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/trading"
	"github.com/wonny/helix/pkg/logger"
)

// OrderHandler serves order submission, cancelation and listing
type OrderHandler struct {
	trading *trading.Service
	logger  *logger.Logger
}

func NewOrderHandler(tr *trading.Service, log *logger.Logger) *OrderHandler {
	return &OrderHandler{trading: tr, logger: log}
}

// Submit handles POST /api/orders
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	var req contracts.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", contracts.ErrValidation))
		return
	}

	order, err := h.trading.Submit(r.Context(), member, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// Cancel handles DELETE /api/orders/{id}
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid order id", contracts.ErrValidation))
		return
	}

	order, err := h.trading.Cancel(r.Context(), member, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// List handles GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	orders, err := h.trading.GetOrders(r.Context(), member)
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []*contracts.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}
