package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process cache. It is used when no cache path is configured
// and in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     Clock
}

// NewMemory returns an empty in-memory cache. A nil clock means time.Now.
func NewMemory(now Clock) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]Entry), now: now}
}

// Get returns the live entry for barcode.
func (m *Memory) Get(ctx context.Context, barcode string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	m.mu.RLock()
	e, ok := m.entries[barcode]
	m.mu.RUnlock()
	if !ok || e.Expired(m.now()) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Put stores e under its record's barcode, replacing any previous entry.
func (m *Memory) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[e.Record.Barcode] = e
	m.mu.Unlock()
	return nil
}

// Delete drops the entry for barcode.
func (m *Memory) Delete(ctx context.Context, barcode string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[barcode]
	delete(m.entries, barcode)
	return ok, nil
}

// PurgeExpired removes every expired entry and returns how many went.
func (m *Memory) PurgeExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// List returns up to limit entries, most recently cached first.
func (m *Memory) List(ctx context.Context, limit int) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	items := make([]Item, 0, len(m.entries))
	for _, e := range m.entries {
		items = append(items, itemOf(e))
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CachedAt.After(items[j].CachedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func itemOf(e Entry) Item {
	return Item{
		Barcode:     e.Record.Barcode,
		Name:        e.Record.Name,
		DataQuality: e.Record.DataQuality,
		CachedAt:    e.CachedAt,
		ExpiresAt:   e.ExpiresAt,
	}
}
