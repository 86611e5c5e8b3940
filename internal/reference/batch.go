package reference

import (
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/cockroachdb/pebble"

	"github.com/korjavin/nomnom/internal/off"
	"github.com/korjavin/nomnom/internal/search"
)

// WriteBatch accumulates products for batched writes to Pebble and Bleve.
type WriteBatch struct {
	s       *Store
	pb      *pebble.Batch
	bb      *bleve.Batch
	count   int
	indexed int
}

// NewWriteBatch creates a new WriteBatch backed by the given store.
func (s *Store) NewWriteBatch() *WriteBatch {
	return &WriteBatch{
		s:  s,
		pb: s.db.NewBatch(),
		bb: s.index.NewBatch(),
	}
}

// Put accumulates a product in the batch without flushing. Products with a
// usable name are also indexed; the rest stay reachable by barcode only.
// It reports whether the product was indexed.
func (b *WriteBatch) Put(p off.Product) (bool, error) {
	if p.Code == "" {
		return false, fmt.Errorf("product has empty barcode")
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode product %q: %w", p.Code, err)
	}
	if err := b.pb.Set([]byte(p.Code), encoded, nil); err != nil {
		return false, fmt.Errorf("pebble batch set: %w", err)
	}
	b.count++

	name := p.Name()
	if name == "" {
		// A refreshed row may have lost its name; drop the stale index entry.
		b.bb.Delete(p.Code)
		return false, nil
	}
	if err := b.bb.Index(p.Code, search.NewDocument(name, p.Brands)); err != nil {
		return false, fmt.Errorf("bleve batch index: %w", err)
	}
	b.indexed++
	return true, nil
}

// Flush commits both batches to the underlying stores and resets accumulators.
func (b *WriteBatch) Flush() error {
	if err := b.pb.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("pebble batch commit: %w", err)
	}
	if err := b.s.index.Batch(b.bb); err != nil {
		return fmt.Errorf("bleve batch commit: %w", err)
	}
	b.pb.Reset()
	b.bb.Reset()
	b.count = 0
	b.indexed = 0
	return nil
}

// Close flushes any pending data with a synced pebble commit and releases
// the batch memory.
func (b *WriteBatch) Close() error {
	defer b.pb.Close()
	if b.count == 0 {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}
	return b.s.db.Flush()
}

// Len returns the number of products accumulated since the last flush.
func (b *WriteBatch) Len() int {
	return b.count
}
