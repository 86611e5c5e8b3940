package api

import (
	"net/http"

	"github.com/korjavin/nomnom/internal/auth"
	"github.com/korjavin/nomnom/internal/metrics"
)

// RegisterRoutes registers all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, apiKeys []string, h *Handler, reg *metrics.Registry) {
	protected := auth.APIKeyMiddleware(apiKeys)

	// Public
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /metrics", h.Metrics(reg))

	// Protected: require X-API-Key header (or api_key query param)
	mux.Handle("GET /api/v1/food/barcode/{barcode}", protected(http.HandlerFunc(h.FoodByBarcode)))
	mux.Handle("GET /api/v1/food/search", protected(http.HandlerFunc(h.FoodSearch)))
	mux.Handle("POST /api/v1/overrides", protected(http.HandlerFunc(h.CreateOverride)))
	mux.Handle("DELETE /api/v1/overrides/{id}", protected(http.HandlerFunc(h.DeleteOverride)))
}
