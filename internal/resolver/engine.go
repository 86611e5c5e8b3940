// Package resolver turns barcodes and free-text queries into canonical
// nutrition records. User overrides always win over the bulk reference
// dataset; normalized reference hits are cached with a lifetime that depends
// on their data-quality tier.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/korjavin/nomnom/internal/cache"
	"github.com/korjavin/nomnom/internal/metrics"
	"github.com/korjavin/nomnom/internal/nutrition"
	"github.com/korjavin/nomnom/internal/off"
	"github.com/korjavin/nomnom/internal/search"
)

var (
	// ErrNotFound means neither the override store nor the reference dataset
	// holds a usable record.
	ErrNotFound = errors.New("food not found")
	// ErrInvalidBarcode is returned for barcodes that are not 8 to 14 digits.
	ErrInvalidBarcode = errors.New("invalid barcode")
	// ErrInvalidOverride wraps every input problem found by CreateOverride.
	ErrInvalidOverride = errors.New("invalid override")
	// ErrInvalidQuery is returned for blank text queries.
	ErrInvalidQuery = errors.New("empty query")
)

var barcodePattern = regexp.MustCompile(`^[0-9]{8,14}$`)

// ValidBarcode reports whether s looks like an EAN-8, UPC-A, EAN-13 or
// GTIN-14 code.
func ValidBarcode(s string) bool {
	return barcodePattern.MatchString(s)
}

// OverrideStore is the subset of the override store used by the engine.
type OverrideStore interface {
	FindByBarcode(ctx context.Context, barcode string) (nutrition.Override, bool, error)
	FindByText(ctx context.Context, query string, limit int) ([]nutrition.Override, error)
	Put(ctx context.Context, o nutrition.Override) (nutrition.Override, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReferenceDataset is the read contract of the bulk product catalog.
type ReferenceDataset interface {
	FindByBarcode(ctx context.Context, barcode string) (off.Product, bool, error)
	TextSearch(ctx context.Context, q string, limit int) ([]off.Product, error)
}

// Cache stores normalized reference records. Implementations must report
// expired entries as absent.
type Cache interface {
	Get(ctx context.Context, barcode string) (cache.Entry, bool, error)
	Put(ctx context.Context, e cache.Entry) error
}

// TTLPolicy maps a quality tier to a cache lifetime.
type TTLPolicy struct {
	Complete time.Duration
	Partial  time.Duration
	Minimal  time.Duration
}

// DefaultTTL keeps complete records for 30 days and the rest for 7.
var DefaultTTL = TTLPolicy{
	Complete: 30 * 24 * time.Hour,
	Partial:  7 * 24 * time.Hour,
	Minimal:  7 * 24 * time.Hour,
}

// For returns the lifetime for q. Unknown tiers get the minimal lifetime.
func (p TTLPolicy) For(q nutrition.Quality) time.Duration {
	switch q {
	case nutrition.QualityComplete:
		return p.Complete
	case nutrition.QualityPartial:
		return p.Partial
	default:
		return p.Minimal
	}
}

// Engine resolves lookups. It is safe for concurrent use.
type Engine struct {
	overrides OverrideStore
	reference ReferenceDataset
	cache     Cache

	ttl    TTLPolicy
	now    func() time.Time
	logger *slog.Logger

	barcodeHist *metrics.Histogram
	searchHist  *metrics.Histogram
	hits        map[string]*metrics.Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for cache stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger for skipped records and cache failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTTL overrides DefaultTTL.
func WithTTL(p TTLPolicy) Option {
	return func(e *Engine) { e.ttl = p }
}

// WithMetrics records latencies and resolution sources in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(e *Engine) {
		e.barcodeHist = reg.Register("barcode_resolve", metrics.BucketsBarcode)
		e.searchHist = reg.Register("text_search", metrics.BucketsSearch)
		for _, src := range []string{hitOverride, hitCache, hitReference, hitNotFound} {
			e.hits[src] = reg.Counter("resolve_" + src)
		}
	}
}

const (
	hitOverride  = "override"
	hitCache     = "cache"
	hitReference = "reference"
	hitNotFound  = "not_found"
)

// New builds an Engine. cache may be nil to disable caching.
func New(overrides OverrideStore, reference ReferenceDataset, c Cache, opts ...Option) *Engine {
	e := &Engine{
		overrides: overrides,
		reference: reference,
		cache:     c,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    slog.Default(),
		hits:      make(map[string]*metrics.Counter),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveByBarcode returns the record for barcode, preferring an override,
// then a live cache entry, then the reference dataset.
func (e *Engine) ResolveByBarcode(ctx context.Context, barcode string) (nutrition.Record, error) {
	defer e.barcodeHist.Since(time.Now())

	barcode = strings.TrimSpace(barcode)
	if !ValidBarcode(barcode) {
		return nutrition.Record{}, fmt.Errorf("%q: %w", barcode, ErrInvalidBarcode)
	}

	o, found, err := e.overrides.FindByBarcode(ctx, barcode)
	if err != nil {
		return nutrition.Record{}, fmt.Errorf("override lookup: %w", err)
	}
	if found {
		e.hits[hitOverride].Inc()
		return fromOverride(o), nil
	}

	if e.cache != nil {
		entry, found, err := e.cache.Get(ctx, barcode)
		if err != nil {
			return nutrition.Record{}, fmt.Errorf("cache lookup: %w", err)
		}
		if found {
			e.hits[hitCache].Inc()
			entry.Record.Source = nutrition.SourceBulkReference
			return nutrition.Finalize(entry.Record), nil
		}
	}

	raw, found, err := e.reference.FindByBarcode(ctx, barcode)
	if err != nil {
		return nutrition.Record{}, fmt.Errorf("reference lookup: %w", err)
	}
	if !found {
		e.hits[hitNotFound].Inc()
		return nutrition.Record{}, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}

	rec, err := nutrition.Normalize(raw, nutrition.SourceBulkReference)
	if err != nil {
		e.logger.Warn("reference record unusable", "barcode", barcode, "error", err)
		e.hits[hitNotFound].Inc()
		return nutrition.Record{}, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}
	if rec.Barcode == "" {
		rec.Barcode = barcode
	}
	rec = nutrition.Finalize(rec)
	e.hits[hitReference].Inc()

	if e.cache != nil {
		now := e.now()
		if err := e.cache.Put(ctx, cache.NewEntry(rec, now, e.ttl.For(rec.DataQuality))); err != nil {
			e.logger.Warn("cache write failed", "barcode", barcode, "error", err)
		}
	}
	return rec, nil
}

// ResolveByText searches overrides and the reference dataset concurrently.
// Overrides come first. A reference hit whose barcode has an override is
// dropped when that override is already listed and replaced by it otherwise.
// Reference rows without a usable name are skipped and logged.
func (e *Engine) ResolveByText(ctx context.Context, query string, limit int) ([]nutrition.Record, error) {
	defer e.searchHist.Since(time.Now())

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	limit = search.ClampLimit(limit)

	var (
		overrides []nutrition.Override
		raws      []off.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overrides, err = e.overrides.FindByText(gctx, query, limit)
		if err != nil {
			return fmt.Errorf("override search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		raws, err = e.reference.TextSearch(gctx, query, limit)
		if err != nil {
			return fmt.Errorf("reference search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]nutrition.Record, 0, len(overrides)+len(raws))
	covered := make(map[string]struct{}, len(overrides))
	for _, o := range overrides {
		out = append(out, fromOverride(o))
		if o.Barcode != "" {
			covered[o.Barcode] = struct{}{}
		}
	}

	for _, raw := range raws {
		rec, err := nutrition.Normalize(raw, nutrition.SourceBulkReference)
		if err != nil {
			e.logger.Warn("skipping reference record", "barcode", raw.Code, "error", err)
			continue
		}
		if rec.Barcode != "" {
			if _, dup := covered[rec.Barcode]; dup {
				continue
			}
			// An override outside this page of text hits still shadows the row.
			o, found, err := e.overrides.FindByBarcode(ctx, rec.Barcode)
			if err != nil {
				return nil, fmt.Errorf("override lookup: %w", err)
			}
			if found {
				covered[rec.Barcode] = struct{}{}
				out = append(out, fromOverride(o))
				continue
			}
		}
		out = append(out, nutrition.Finalize(rec))
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// OverrideInput is the correction payload for CreateOverride.
type OverrideInput struct {
	ID        string `json:"id,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
	Name      string `json:"name"`
	Brand     string `json:"brand,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`

	Calories      *float64 `json:"calories"`
	ProteinG      *float64 `json:"protein_g"`
	CarbsG        *float64 `json:"carbs_g"`
	FatG          *float64 `json:"fat_g"`
	FiberG        *float64 `json:"fiber_g,omitempty"`
	SugarG        *float64 `json:"sugar_g,omitempty"`
	SodiumG       *float64 `json:"sodium_g,omitempty"`
	SaturatedFatG *float64 `json:"saturated_fat_g,omitempty"`

	Categories      []string `json:"categories,omitempty"`
	IngredientsText string   `json:"ingredients_text,omitempty"`
	Allergens       []string `json:"allergens,omitempty"`
	ServingSize     string   `json:"serving_size,omitempty"`
}

func (in OverrideInput) check() error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if b := strings.TrimSpace(in.Barcode); b != "" && !ValidBarcode(b) {
		problems = append(problems, "barcode must be 8 to 14 digits")
	}
	required := []struct {
		field string
		v     *float64
	}{
		{"calories", in.Calories},
		{"protein_g", in.ProteinG},
		{"carbs_g", in.CarbsG},
		{"fat_g", in.FatG},
	}
	for _, f := range required {
		switch {
		case f.v == nil:
			problems = append(problems, f.field+" is required")
		case *f.v < 0:
			problems = append(problems, f.field+" must not be negative")
		}
	}
	optional := []struct {
		field string
		v     *float64
	}{
		{"fiber_g", in.FiberG},
		{"sugar_g", in.SugarG},
		{"sodium_g", in.SodiumG},
		{"saturated_fat_g", in.SaturatedFatG},
	}
	for _, f := range optional {
		if f.v != nil && *f.v < 0 {
			problems = append(problems, f.field+" must not be negative")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOverride, strings.Join(problems, "; "))
	}
	return nil
}

// CreateOverride stores a user correction. An existing override for the same
// barcode is replaced whole. The returned override carries its recomputed
// quality tier and any validation warning.
func (e *Engine) CreateOverride(ctx context.Context, in OverrideInput) (nutrition.Override, error) {
	if err := in.check(); err != nil {
		return nutrition.Override{}, err
	}

	o := nutrition.Override{
		ID:        strings.TrimSpace(in.ID),
		CreatedBy: strings.TrimSpace(in.CreatedBy),
		Record: nutrition.Record{
			Barcode:         strings.TrimSpace(in.Barcode),
			Name:            strings.TrimSpace(in.Name),
			Brand:           strings.TrimSpace(in.Brand),
			Calories:        in.Calories,
			ProteinG:        in.ProteinG,
			CarbsG:          in.CarbsG,
			FatG:            in.FatG,
			FiberG:          in.FiberG,
			SugarG:          in.SugarG,
			SodiumG:         in.SodiumG,
			SaturatedFatG:   in.SaturatedFatG,
			Categories:      nutrition.CleanList(in.Categories),
			IngredientsText: strings.TrimSpace(in.IngredientsText),
			Allergens:       nutrition.CleanAllergens(in.Allergens),
			ServingSize:     strings.TrimSpace(in.ServingSize),
		},
	}

	if o.Barcode != "" {
		_, found, err := e.reference.FindByBarcode(ctx, o.Barcode)
		if err != nil {
			return nutrition.Override{}, fmt.Errorf("reference lookup: %w", err)
		}
		o.OverridesReference = found
	}

	saved, err := e.overrides.Put(ctx, o)
	if err != nil {
		return nutrition.Override{}, fmt.Errorf("save override: %w", err)
	}
	e.logger.Info("override saved", "id", saved.ID, "barcode", saved.Barcode, "overrides_reference", saved.OverridesReference)

	saved.Record = fromOverride(saved)
	return saved, nil
}

// DeleteOverride removes the override with the given id. Lookups for its
// barcode fall back to the reference dataset afterwards.
func (e *Engine) DeleteOverride(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("override id is required: %w", ErrInvalidOverride)
	}
	ok, err := e.overrides.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if !ok {
		return fmt.Errorf("override %s: %w", id, ErrNotFound)
	}
	e.logger.Info("override deleted", "id", id)
	return nil
}

func fromOverride(o nutrition.Override) nutrition.Record {
	r := o.Record
	r.Source = nutrition.SourceOverride
	r.OverrideID = o.ID
	return nutrition.Finalize(r)
}
