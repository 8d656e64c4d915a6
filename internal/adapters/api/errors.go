package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kisanmandi/bidledger/internal/domain/bids"
)

// errorResponse is the JSON error payload returned by every handler.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, errorResponse{Error: code, Details: details})
}

// writeDomainError maps the negotiation error taxonomy to HTTP status codes:
// conflicts 409, authorization 403, state/validation 422, not found 404.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, bids.ErrDuplicateActiveBid),
		errors.Is(err, bids.ErrConcurrentModification):
		writeError(w, http.StatusConflict, conflictCode(err), err.Error())
	case errors.Is(err, bids.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, bids.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, bids.ErrInvalidCounterOffer):
		writeError(w, http.StatusUnprocessableEntity, "invalid_counter_offer", err.Error())
	case errors.Is(err, bids.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error())
	case errors.Is(err, bids.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, "invalid_quantity", err.Error())
	case errors.Is(err, bids.ErrSelfBid):
		writeError(w, http.StatusUnprocessableEntity, "self_bid", err.Error())
	case errors.Is(err, bids.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, bids.ErrBidNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func conflictCode(err error) string {
	if errors.Is(err, bids.ErrDuplicateActiveBid) {
		return "duplicate_active_bid"
	}
	return "concurrent_modification"
}
