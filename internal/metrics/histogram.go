package metrics

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram keeps a bounded window of duration samples for percentile
// reporting at the end of a run.
type Histogram struct {
	samples []float64 // milliseconds
	mu      sync.RWMutex
	maxSize int
}

// NewHistogram creates a histogram holding at most maxSize samples. When the
// window is full the oldest fifth is dropped.
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Histogram{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a duration sample.
func (h *Histogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, float64(d.Microseconds())/1000.0)
	if len(h.samples) > h.maxSize {
		h.samples = h.samples[h.maxSize/5:]
	}
}

// Stats summarises the current window.
func (h *Histogram) Stats() LatencyStats {
	h.mu.RLock()
	sorted := append([]float64(nil), h.samples...)
	h.mu.RUnlock()

	if len(sorted) == 0 {
		return LatencyStats{}
	}
	sort.Float64s(sorted)

	return LatencyStats{
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P95:   stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		P99:   stat.Quantile(0.99, stat.LinInterp, sorted, nil),
		Min:   floats.Min(sorted),
		Max:   floats.Max(sorted),
		Count: len(sorted),
	}
}

// Count returns the number of samples in the window.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Reset clears all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}

// LatencyStats contains statistics for a latency histogram, in milliseconds.
type LatencyStats struct {
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}
