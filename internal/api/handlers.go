package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/korjavin/nomnom/internal/envelope"
	"github.com/korjavin/nomnom/internal/metrics"
	"github.com/korjavin/nomnom/internal/middleware"
	"github.com/korjavin/nomnom/internal/nutrition"
	"github.com/korjavin/nomnom/internal/reference"
	"github.com/korjavin/nomnom/internal/resolver"
)

// maxBodyBytes bounds override payloads.
const maxBodyBytes = 64 << 10

// Resolver is the resolution engine as seen by the HTTP layer.
type Resolver interface {
	ResolveByBarcode(ctx context.Context, barcode string) (nutrition.Record, error)
	ResolveByText(ctx context.Context, query string, limit int) ([]nutrition.Record, error)
	CreateOverride(ctx context.Context, in resolver.OverrideInput) (nutrition.Override, error)
	DeleteOverride(ctx context.Context, id string) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Resolver Resolver
	Manifest *reference.Manifest
	Logger   *slog.Logger
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	l := h.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("request_id", middleware.RequestID(r.Context()))
}

// Health returns a liveness check with manifest metadata.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.Manifest != nil {
		resp["schema_version"] = h.Manifest.SchemaVersion
		resp["build_time"] = h.Manifest.BuildTime
		resp["product_count"] = h.Manifest.ProductCount
	}
	envelope.OK(w, http.StatusOK, resp)
}

// Metrics serves the registry snapshot. A nil registry reports nothing.
func (h *Handler) Metrics(reg *metrics.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg == nil {
			envelope.OK(w, http.StatusOK, metrics.Report{})
			return
		}
		envelope.OK(w, http.StatusOK, reg.Snapshot())
	}
}

// FoodByBarcode resolves a single barcode.
func (h *Handler) FoodByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := r.PathValue("barcode")
	rec, err := h.Resolver.ResolveByBarcode(r.Context(), barcode)
	if err != nil {
		h.fail(w, r, err, "barcode", barcode)
		return
	}
	envelope.OK(w, http.StatusOK, rec)
}

// FoodSearch searches foods by name across overrides and the reference data.
func (h *Handler) FoodSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		envelope.Fail(w, http.StatusBadRequest, envelope.CodeBadRequest, "missing query parameter 'q'")
		return
	}

	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n <= 0 {
			envelope.Fail(w, http.StatusBadRequest, envelope.CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.Resolver.ResolveByText(r.Context(), q, limit)
	if err != nil {
		h.fail(w, r, err, "query", q)
		return
	}
	envelope.OK(w, http.StatusOK, map[string]any{"results": recs, "count": len(recs)})
}

// CreateOverride stores a user correction.
func (h *Handler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	var in resolver.OverrideInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		envelope.Fail(w, http.StatusBadRequest, envelope.CodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	o, err := h.Resolver.CreateOverride(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "barcode", in.Barcode)
		return
	}
	envelope.OK(w, http.StatusCreated, o)
}

// DeleteOverride removes an override by id.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Resolver.DeleteOverride(r.Context(), id); err != nil {
		h.fail(w, r, err, "id", id)
		return
	}
	envelope.OK(w, http.StatusOK, map[string]string{"id": id})
}

// fail maps resolver errors to envelope codes. Anything unexpected is logged
// and reported as INTERNAL without leaking details.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, attrs ...any) {
	switch {
	case errors.Is(err, resolver.ErrInvalidBarcode):
		envelope.Fail(w, http.StatusBadRequest, envelope.CodeInvalidBarcode, "barcode must be 8 to 14 digits")
	case errors.Is(err, resolver.ErrInvalidOverride):
		envelope.Fail(w, http.StatusUnprocessableEntity, envelope.CodeInvalidOverride, err.Error())
	case errors.Is(err, resolver.ErrInvalidQuery):
		envelope.Fail(w, http.StatusBadRequest, envelope.CodeBadRequest, "query must not be blank")
	case errors.Is(err, resolver.ErrNotFound):
		envelope.Fail(w, http.StatusNotFound, envelope.CodeNotFound, "food not found")
	default:
		h.logger(r).Error("request failed", append(attrs, "error", err)...)
		envelope.Fail(w, http.StatusInternalServerError, envelope.CodeInternal, "internal server error")
	}
}
