// Package api exposes the negotiation service over HTTP. Actor identity
// comes exclusively from the authenticated request context, never from the
// request body.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kisanmandi/bidledger/internal/domain/bids"
	"github.com/kisanmandi/bidledger/pkg/auth"
)

// Handler serves the bid ledger HTTP API
type Handler struct {
	service *bids.Service
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler around the negotiation service
func NewHandler(service *bids.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type messagePayload struct {
	Text           string `json:"text"`
	Language       string `json:"language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type placeBidRequest struct {
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	Amount    int64           `json:"amount"`
	Quantity  int64           `json:"quantity"`
	Message   *messagePayload `json:"message,omitempty"`
}

type respondRequest struct {
	Action   string `json:"action"`
	Amount   int64  `json:"amount,omitempty"`
	Quantity int64  `json:"quantity,omitempty"`
	Message  string `json:"message,omitempty"`
}

// PlaceBid handles POST /v1/bids
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.ActorID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing actor identity")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid product_id")
		return
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid seller_id")
		return
	}

	cmd := bids.PlaceBidCommand{
		ProductID: productID,
		BuyerID:   actorID,
		SellerID:  sellerID,
		Amount:    req.Amount,
		Quantity:  req.Quantity,
	}
	if req.Message != nil {
		cmd.Message = &bids.MessageDraft{
			Text:           req.Message.Text,
			Language:       req.Message.Language,
			TargetLanguage: req.Message.TargetLanguage,
		}
	}

	bid, err := h.service.PlaceBid(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, bid)
}

// RespondToBid handles POST /v1/bids/{id}/respond
func (h *Handler) RespondToBid(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.ActorID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing actor identity")
		return
	}

	bidID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid bid id")
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	resp := bids.Response{Action: bids.Action(req.Action)}
	if resp.Action == bids.ActionCounter {
		resp.Counter = &bids.CounterOffer{
			Amount:   req.Amount,
			Quantity: req.Quantity,
			Message:  req.Message,
		}
	}

	bid, err := h.service.RespondToBid(r.Context(), bidID, actorID, resp)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, bid)
}

// GetBid handles GET /v1/bids/{id}
func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid bid id")
		return
	}

	bid, err := h.service.GetBid(r.Context(), bidID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// GetTopBid handles GET /v1/products/{id}/top-bid
func (h *Handler) GetTopBid(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid product id")
		return
	}

	bid, err := h.service.GetTopBid(r.Context(), productID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if bid == nil {
		writeError(w, http.StatusNotFound, "not_found", "no active bids for product")
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// ListProductBids handles GET /v1/products/{id}/bids
func (h *Handler) ListProductBids(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid product id")
		return
	}

	list, err := h.service.ListProductBids(r.Context(), productID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*bids.Bid{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListActivity handles GET /v1/activity?role=buyer|seller
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.ActorID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing actor identity")
		return
	}

	role := bids.Role(r.URL.Query().Get("role"))
	if !role.IsValid() {
		writeError(w, http.StatusBadRequest, "bad_request", "role must be buyer or seller")
		return
	}

	list, err := h.service.ListActivity(r.Context(), actorID, role)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*bids.Bid{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
