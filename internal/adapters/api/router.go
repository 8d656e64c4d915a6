package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the handler's routes. authMiddleware guards every route
// except the health check.
func NewRouter(h *Handler, authMiddleware func(http.Handler) http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(mux.MiddlewareFunc(authMiddleware))
	v1.HandleFunc("/bids", h.PlaceBid).Methods(http.MethodPost)
	v1.HandleFunc("/bids/{id}", h.GetBid).Methods(http.MethodGet)
	v1.HandleFunc("/bids/{id}/respond", h.RespondToBid).Methods(http.MethodPost)
	v1.HandleFunc("/products/{id}/top-bid", h.GetTopBid).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}/bids", h.ListProductBids).Methods(http.MethodGet)
	v1.HandleFunc("/activity", h.ListActivity).Methods(http.MethodGet)

	return r
}
