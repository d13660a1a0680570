package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/helix/internal/contracts"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a service error to an HTTP status
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrValidation),
		errors.Is(err, contracts.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, contracts.ErrSymbolNotFound),
		errors.Is(err, contracts.ErrCoinNotFound),
		errors.Is(err, contracts.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, contracts.ErrInsufficientFunds),
		errors.Is(err, contracts.ErrNoLiquidity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
