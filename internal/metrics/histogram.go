// Package metrics keeps lock-free latency histograms and counters for the
// resolution paths and renders them as a JSON snapshot.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Histogram is a fixed-bucket latency histogram with lock-free observation.
// Bucket boundaries are upper bounds in microseconds; the last bound must be
// math.MaxInt64 to act as the catch-all bucket.
type Histogram struct {
	bounds []int64
	counts []atomic.Int64
	total  atomic.Int64
}

// NewHistogram creates a Histogram with the given bucket upper bounds
// (in microseconds).
func NewHistogram(boundsMicros []int64) *Histogram {
	h := &Histogram{
		bounds: append([]int64(nil), boundsMicros...),
		counts: make([]atomic.Int64, len(boundsMicros)),
	}
	return h
}

// Observe records a single latency measurement.
func (h *Histogram) Observe(d time.Duration) {
	micros := d.Microseconds()
	i := len(h.bounds) - 1
	for j, bound := range h.bounds {
		if micros <= bound {
			i = j
			break
		}
	}
	h.counts[i].Add(1)
	h.total.Add(1)
}

// Since observes the time elapsed since start. Handy with defer.
func (h *Histogram) Since(start time.Time) {
	if h != nil {
		h.Observe(time.Since(start))
	}
}

// Snapshot is a point-in-time view of a histogram.
type Snapshot struct {
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Total int64         `json:"total"`
}

// Snapshot returns a point-in-time snapshot of the histogram.
func (h *Histogram) Snapshot() Snapshot {
	total := h.total.Load()
	if total == 0 {
		return Snapshot{}
	}

	counts := make([]int64, len(h.counts))
	for i := range h.counts {
		counts[i] = h.counts[i].Load()
	}

	return Snapshot{
		P50:   percentile(h.bounds, counts, total, 50),
		P95:   percentile(h.bounds, counts, total, 95),
		P99:   percentile(h.bounds, counts, total, 99),
		Total: total,
	}
}

// percentile returns the upper bound of the bucket holding the pth
// percentile. The catch-all bucket reports the previous bound.
func percentile(bounds []int64, counts []int64, total int64, p int) time.Duration {
	target := int64(math.Ceil(float64(total) * float64(p) / 100.0))
	var cumulative int64
	for i, c := range counts {
		cumulative += c
		if cumulative < target {
			continue
		}
		bound := bounds[i]
		if bound == math.MaxInt64 {
			bound = 0
			if i > 0 {
				bound = bounds[i-1]
			}
		}
		return time.Duration(bound) * time.Microsecond
	}
	return 0
}

// Counter is a monotonically increasing count.
type Counter struct {
	n atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() {
	if c != nil {
		c.n.Add(1)
	}
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.n.Load()
}

// Registry holds named histograms and counters.
type Registry struct {
	mu       sync.RWMutex
	hists    map[string]*Histogram
	counters map[string]*Counter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		hists:    make(map[string]*Histogram),
		counters: make(map[string]*Counter),
	}
}

// Register creates and stores a named Histogram. If the name already exists the
// existing histogram is returned unchanged.
func (r *Registry) Register(name string, bounds []int64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hists[name]; ok {
		return h
	}
	h := NewHistogram(bounds)
	r.hists[name] = h
	return h
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	return c
}

// Report is the JSON document served at /metrics.
type Report struct {
	Latency  map[string]Snapshot `json:"latency"`
	Counters map[string]int64    `json:"counters"`
}

// Snapshot returns snapshots for all registered histograms and counters.
func (r *Registry) Snapshot() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep := Report{
		Latency:  make(map[string]Snapshot, len(r.hists)),
		Counters: make(map[string]int64, len(r.counters)),
	}
	for name, h := range r.hists {
		rep.Latency[name] = h.Snapshot()
	}
	for name, c := range r.counters {
		rep.Counters[name] = c.Value()
	}
	return rep
}

// Pre-defined bucket sets (upper bounds in microseconds).

// BucketsBarcode suits barcode resolution: pebble point reads plus a cache
// round trip, usually well under a few milliseconds.
var BucketsBarcode = []int64{100, 250, 500, 1000, 2000, 5000, 10000, 25000, 50000, math.MaxInt64}

// BucketsSearch suits text resolution, which fans out to two bleve indexes.
var BucketsSearch = []int64{1000, 2500, 5000, 10000, 20000, 50000, 100000, 250000, math.MaxInt64}
