// Package override persists user-authored and user-corrected food records.
// Records live in Pebble under their id with a secondary barcode key, and
// their folded names are indexed in Bleve for text search.
package override

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/korjavin/nomnom/internal/nutrition"
	"github.com/korjavin/nomnom/internal/search"
)

const (
	pebbleDir = "pebble"
	bleveDir  = "bleve"

	recordPrefix  = "o/"
	barcodePrefix = "b/"
)

// Store is a read-write override store.
type Store struct {
	db    *pebble.DB
	index bleve.Index

	// mu serialises writers so that reading the barcode key and committing
	// the replacement happen as one step. Readers never take it.
	mu sync.Mutex

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for created_at/updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the override store rooted at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create override dir: %w", err)
	}
	db, err := pebble.Open(filepath.Join(dir, pebbleDir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	idx, err := search.OpenOrCreate(filepath.Join(dir, bleveDir))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, index: idx, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases all resources held by the store.
func (s *Store) Close() error {
	var errs []string
	if err := s.index.Close(); err != nil {
		errs = append(errs, "bleve: "+err.Error())
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, "pebble: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("override store close: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Get returns the override with the given id.
func (s *Store) Get(ctx context.Context, id string) (nutrition.Override, bool, error) {
	if err := ctx.Err(); err != nil {
		return nutrition.Override{}, false, err
	}
	data, found, err := s.get(recordPrefix + id)
	if err != nil || !found {
		return nutrition.Override{}, found, err
	}
	var o nutrition.Override
	if err := json.Unmarshal(data, &o); err != nil {
		return nutrition.Override{}, false, fmt.Errorf("decode override %s: %w", id, err)
	}
	o.Source = nutrition.SourceOverride
	return o, true, nil
}

// FindByBarcode returns the override registered for barcode, if any.
func (s *Store) FindByBarcode(ctx context.Context, barcode string) (nutrition.Override, bool, error) {
	if err := ctx.Err(); err != nil {
		return nutrition.Override{}, false, err
	}
	id, found, err := s.get(barcodePrefix + barcode)
	if err != nil || !found {
		return nutrition.Override{}, found, err
	}
	return s.Get(ctx, string(id))
}

// FindByText returns overrides whose name or brand matches query, best
// match first.
func (s *Store) FindByText(ctx context.Context, query string, limit int) ([]nutrition.Override, error) {
	ids, err := search.Run(s.index, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]nutrition.Override, 0, len(ids))
	for _, id := range ids {
		o, found, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, o)
		}
	}
	return out, nil
}

// Put stores o and returns the stored version. Writes are an upsert by
// barcode: an existing override for the same barcode is replaced whole,
// keeping its id and created_at. Concurrent writers to one barcode resolve
// last-write-wins.
//
// Derived fields (data_quality, validation) are not persisted.
func (s *Store) Put(ctx context.Context, o nutrition.Override) (nutrition.Override, error) {
	if err := ctx.Err(); err != nil {
		return nutrition.Override{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var (
		previous *nutrition.Override
		replaced string
	)

	if o.ID != "" {
		prev, found, err := s.Get(ctx, o.ID)
		if err != nil {
			return nutrition.Override{}, err
		}
		if found {
			previous = &prev
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if o.Barcode != "" {
		holder, found, err := s.FindByBarcode(ctx, o.Barcode)
		if err != nil {
			return nutrition.Override{}, err
		}
		switch {
		case found && o.ID == "":
			o.ID = holder.ID
			previous = &holder
		case found && holder.ID != o.ID:
			// Another override owns this barcode; the newer write replaces it.
			if err := batch.Delete([]byte(recordPrefix+holder.ID), nil); err != nil {
				return nutrition.Override{}, fmt.Errorf("pebble batch delete: %w", err)
			}
			replaced = holder.ID
		}
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if previous != nil {
		o.CreatedAt = previous.CreatedAt
		if previous.Barcode != "" && previous.Barcode != o.Barcode {
			if err := batch.Delete([]byte(barcodePrefix+previous.Barcode), nil); err != nil {
				return nutrition.Override{}, fmt.Errorf("pebble batch delete: %w", err)
			}
		}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	o.Source = nutrition.SourceOverride
	o.DataQuality = ""
	o.Validation = nil
	o.Unverified = false
	o.Missing = nil

	encoded, err := json.Marshal(o)
	if err != nil {
		return nutrition.Override{}, fmt.Errorf("encode override: %w", err)
	}
	if err := batch.Set([]byte(recordPrefix+o.ID), encoded, nil); err != nil {
		return nutrition.Override{}, fmt.Errorf("pebble batch set: %w", err)
	}
	if o.Barcode != "" {
		if err := batch.Set([]byte(barcodePrefix+o.Barcode), []byte(o.ID), nil); err != nil {
			return nutrition.Override{}, fmt.Errorf("pebble batch set: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nutrition.Override{}, fmt.Errorf("pebble commit: %w", err)
	}

	if replaced != "" {
		if err := s.index.Delete(replaced); err != nil {
			return nutrition.Override{}, fmt.Errorf("bleve delete: %w", err)
		}
	}
	if err := s.index.Index(o.ID, search.NewDocument(o.Name, o.Brand)); err != nil {
		return nutrition.Override{}, fmt.Errorf("bleve index: %w", err)
	}
	return o, nil
}

// Delete removes the override with the given id. It reports whether the
// override existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, found, err := s.Get(ctx, id)
	if err != nil || !found {
		return false, err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete([]byte(recordPrefix+id), nil); err != nil {
		return false, fmt.Errorf("pebble batch delete: %w", err)
	}
	if o.Barcode != "" {
		if err := batch.Delete([]byte(barcodePrefix+o.Barcode), nil); err != nil {
			return false, fmt.Errorf("pebble batch delete: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return false, fmt.Errorf("pebble commit: %w", err)
	}
	if err := s.index.Delete(id); err != nil {
		return true, fmt.Errorf("bleve delete: %w", err)
	}
	return true, nil
}

// get copies the value under key out of pebble.
func (s *Store) get(key string) ([]byte, bool, error) {
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	data := make([]byte, len(val))
	copy(data, val)
	return data, true, nil
}
