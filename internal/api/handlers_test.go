package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/korjavin/nomnom/internal/cache"
	"github.com/korjavin/nomnom/internal/envelope"
	"github.com/korjavin/nomnom/internal/metrics"
	"github.com/korjavin/nomnom/internal/nutrition"
	"github.com/korjavin/nomnom/internal/off"
	"github.com/korjavin/nomnom/internal/override"
	"github.com/korjavin/nomnom/internal/reference"
	"github.com/korjavin/nomnom/internal/resolver"
)

const testKey = "secret"

// newTestServer wires real stores in temp dirs behind the full route table.
func newTestServer(t *testing.T, products ...off.Product) (*httptest.Server, *metrics.Registry) {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "data")

	rw, err := reference.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("reference.Open: %v", err)
	}
	batch := rw.NewWriteBatch()
	for _, p := range products {
		if _, err := batch.Put(p); err != nil {
			t.Fatalf("batch.Put: %v", err)
		}
	}
	if err := batch.Close(); err != nil {
		t.Fatalf("batch.Close: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("reference Close: %v", err)
	}

	ref, err := reference.OpenReadOnly(dataDir, nil)
	if err != nil {
		t.Fatalf("reference.OpenReadOnly: %v", err)
	}
	t.Cleanup(func() { ref.Close() })

	ov, err := override.Open(filepath.Join(t.TempDir(), "overrides"))
	if err != nil {
		t.Fatalf("override.Open: %v", err)
	}
	t.Cleanup(func() { ov.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := metrics.NewRegistry()
	engine := resolver.New(ov, ref, cache.NewMemory(nil), resolver.WithLogger(logger), resolver.WithMetrics(reg))

	mux := http.NewServeMux()
	RegisterRoutes(mux, []string{testKey}, &Handler{Resolver: engine, Logger: logger}, reg)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, envelope.Response, json.RawMessage) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("X-API-Key", testKey)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env struct {
		envelope.Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env.Response, env.Data
}

func nutella() off.Product {
	return off.Product{
		Code:        "3017620422003",
		ProductName: "Nutella",
		Brands:      "Ferrero",
		Nutriments: map[string]any{
			"energy-kcal_100g":   539.0,
			"proteins_100g":      6.3,
			"carbohydrates_100g": 57.5,
			"fat_100g":           30.9,
		},
	}
}

func TestFoodByBarcode(t *testing.T) {
	srv, _ := newTestServer(t, nutella())

	status, env, data := do(t, srv, http.MethodGet, "/api/v1/food/barcode/3017620422003", nil)
	if status != http.StatusOK || !env.Success || env.Error != nil {
		t.Fatalf("status %d, env %+v", status, env)
	}
	var rec nutrition.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Name != "Nutella" || rec.Source != nutrition.SourceBulkReference || rec.DataQuality != nutrition.QualityPartial {
		t.Errorf("record = %+v", rec)
	}

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/api/v1/food/barcode/12", http.StatusBadRequest, envelope.CodeInvalidBarcode},
		{"/api/v1/food/barcode/0000000000000", http.StatusNotFound, envelope.CodeNotFound},
	}
	for _, tc := range tests {
		status, env, _ := do(t, srv, http.MethodGet, tc.path, nil)
		if status != tc.status || env.Success || env.Error == nil || env.Error.Code != tc.code {
			t.Errorf("GET %s = %d %+v; want %d %s", tc.path, status, env.Error, tc.status, tc.code)
		}
	}
}

func TestOverrideRoundTrip(t *testing.T) {
	srv, reg := newTestServer(t, nutella())
	const code = "0000000000000"

	in := map[string]any{
		"barcode":   code,
		"name":      "Grandma's Flapjack",
		"calories":  450,
		"protein_g": 6,
		"carbs_g":   60,
		"fat_g":     21,
	}
	status, env, data := do(t, srv, http.MethodPost, "/api/v1/overrides", in)
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("POST status %d, env %+v", status, env)
	}
	var created nutrition.Override
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode override: %v", err)
	}
	if created.ID == "" || created.OverridesReference {
		t.Errorf("created = %+v", created)
	}

	status, _, data = do(t, srv, http.MethodGet, "/api/v1/food/barcode/"+code, nil)
	var rec nutrition.Record
	json.Unmarshal(data, &rec)
	if status != http.StatusOK || rec.Source != nutrition.SourceOverride || rec.OverrideID != created.ID {
		t.Errorf("GET after override = %d %+v", status, rec)
	}

	status, _, data = do(t, srv, http.MethodGet, "/api/v1/food/search?q=flapjack", nil)
	var page struct {
		Results []nutrition.Record `json:"results"`
	}
	json.Unmarshal(data, &page)
	if status != http.StatusOK || len(page.Results) != 1 || page.Results[0].Source != nutrition.SourceOverride {
		t.Errorf("search = %d %+v", status, page.Results)
	}

	if status, env, _ := do(t, srv, http.MethodDelete, "/api/v1/overrides/"+created.ID, nil); status != http.StatusOK || !env.Success {
		t.Errorf("DELETE = %d %+v", status, env)
	}
	if status, env, _ := do(t, srv, http.MethodGet, "/api/v1/food/barcode/"+code, nil); status != http.StatusNotFound || env.Error.Code != envelope.CodeNotFound {
		t.Errorf("GET after delete = %d %+v", status, env.Error)
	}
	if status, _, _ := do(t, srv, http.MethodDelete, "/api/v1/overrides/"+created.ID, nil); status != http.StatusNotFound {
		t.Errorf("second DELETE = %d", status)
	}

	if got := reg.Counter("resolve_override").Value(); got != 1 {
		t.Errorf("resolve_override = %d; want 1", got)
	}
}

func TestCreateOverride_BadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	status, env, _ := do(t, srv, http.MethodPost, "/api/v1/overrides", map[string]any{"name": "x", "calories": -1})
	if status != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != envelope.CodeInvalidOverride {
		t.Errorf("invalid override = %d %+v", status, env.Error)
	}

	status, env, _ = do(t, srv, http.MethodPost, "/api/v1/overrides", map[string]any{"name": "x", "colour": "red"})
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Code != envelope.CodeBadRequest {
		t.Errorf("unknown field = %d %+v", status, env.Error)
	}
}

func TestFoodSearch_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/v1/food/search", "/api/v1/food/search?q=milk&limit=abc", "/api/v1/food/search?q=%20"} {
		status, env, _ := do(t, srv, http.MethodGet, path, nil)
		if status != http.StatusBadRequest || env.Error == nil || env.Error.Code != envelope.CodeBadRequest {
			t.Errorf("GET %s = %d %+v", path, status, env.Error)
		}
	}
}

func TestUnauthorizedAndPublicRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/food/barcode/3017620422003")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", resp.StatusCode)
	}

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}

type failingResolver struct{ Resolver }

func (failingResolver) ResolveByBarcode(context.Context, string) (nutrition.Record, error) {
	return nutrition.Record{}, errors.New("pebble: closed")
}

func TestInternalErrorHidesDetails(t *testing.T) {
	h := &Handler{Resolver: failingResolver{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	mux := http.NewServeMux()
	RegisterRoutes(mux, nil, h, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/food/barcode/3017620422003", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("pebble")) {
		t.Errorf("internal error leaked: %s", rec.Body.String())
	}
}
