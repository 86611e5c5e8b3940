// Package reference is the locally hosted bulk Open Food Facts dataset: a
// Pebble KV store of raw products keyed by barcode plus a Bleve index over
// their folded names. It is built offline by the importer and opened
// read-only by the server.
package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/cockroachdb/pebble"

	"github.com/korjavin/nomnom/internal/off"
	"github.com/korjavin/nomnom/internal/search"
)

const (
	pebbleDir = "pebble"
	bleveDir  = "bleve"
)

// Store wraps a Pebble KV store and a Bleve full-text index.
type Store struct {
	db     *pebble.DB
	index  bleve.Index
	logger *slog.Logger
}

// OpenReadOnly opens an existing data directory in read-only mode (for the server).
func OpenReadOnly(dataDir string, logger *slog.Logger) (*Store, error) {
	db, err := pebble.Open(filepath.Join(dataDir, pebbleDir), &pebble.Options{
		ReadOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble (read-only): %w", err)
	}

	idx, err := bleve.Open(filepath.Join(dataDir, bleveDir))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	return &Store{db: db, index: idx, logger: orDefault(logger)}, nil
}

// Open opens a data directory for writing, creating the pebble and bleve
// sub-directories when they are missing. The importer uses it both for fresh
// builds and for delta refreshes of an existing directory.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := pebble.Open(filepath.Join(dataDir, pebbleDir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}

	idx, err := search.OpenOrCreate(filepath.Join(dataDir, bleveDir))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, index: idx, logger: orDefault(logger)}, nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
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
		return fmt.Errorf("store close: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FindByBarcode returns the raw product stored under barcode.
// Returns (Product, false, nil) when the barcode is not found.
func (s *Store) FindByBarcode(ctx context.Context, barcode string) (off.Product, bool, error) {
	if err := ctx.Err(); err != nil {
		return off.Product{}, false, err
	}

	val, closer, err := s.db.Get([]byte(barcode))
	if errors.Is(err, pebble.ErrNotFound) {
		return off.Product{}, false, nil
	}
	if err != nil {
		return off.Product{}, false, fmt.Errorf("pebble get %q: %w", barcode, err)
	}
	defer closer.Close()

	// val is only valid until closer.Close(); Unmarshal copies what it keeps.
	var p off.Product
	if err := json.Unmarshal(val, &p); err != nil {
		return off.Product{}, false, fmt.Errorf("decode product %q: %w", barcode, err)
	}
	p.Code = barcode
	return p, true, nil
}

// TextSearch runs a ranked text query and fetches the matching raw products.
// Rows that vanished or no longer decode are skipped and logged so one bad
// row never fails the whole search.
func (s *Store) TextSearch(ctx context.Context, q string, limit int) ([]off.Product, error) {
	ids, err := search.Run(s.index, q, limit)
	if err != nil {
		return nil, err
	}

	products := make([]off.Product, 0, len(ids))
	for _, id := range ids {
		p, found, err := s.FindByBarcode(ctx, id)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			s.logger.Warn("skipping unreadable reference row", "barcode", id, "error", err)
			continue
		}
		if !found {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}
