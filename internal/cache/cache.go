// Package cache keeps normalized bulk-reference records for a limited time so
// repeated barcode lookups skip the reference dataset. Entries past their
// expiry are reported as absent and get overwritten on the next fetch.
package cache

import (
	"time"

	"github.com/korjavin/nomnom/internal/nutrition"
)

// Entry wraps a cached record with its lifetime.
type Entry struct {
	Record    nutrition.Record `json:"record"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether the entry is no longer valid at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Item is a listing row for cache maintenance.
type Item struct {
	Barcode     string            `json:"barcode"`
	Name        string            `json:"name"`
	DataQuality nutrition.Quality `json:"data_quality"`
	CachedAt    time.Time         `json:"cached_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Clock returns the current time. Tests substitute a fixed or advancing clock.
type Clock func() time.Time

// NewEntry builds an entry cached at now and living for ttl.
func NewEntry(r nutrition.Record, now time.Time, ttl time.Duration) Entry {
	return Entry{Record: r, CachedAt: now, ExpiresAt: now.Add(ttl)}
}
