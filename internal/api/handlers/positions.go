package handlers

import (
	"net/http"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/position"
	"github.com/wonny/helix/pkg/logger"
)

// PositionHandler serves margin positions
type PositionHandler struct {
	positions *position.Service
	logger    *logger.Logger
}

func NewPositionHandler(p *position.Service, log *logger.Logger) *PositionHandler {
	return &PositionHandler{positions: p, logger: log}
}

// List handles GET /api/positions
func (h *PositionHandler) List(w http.ResponseWriter, r *http.Request) {
	member, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	positions, err := h.positions.ListOpen(r.Context(), member)
	if err != nil {
		writeError(w, err)
		return
	}
	if positions == nil {
		positions = []*contracts.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}
