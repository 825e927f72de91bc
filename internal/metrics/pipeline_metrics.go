package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// PipelineMetrics tracks in-process latency and counters of one generator.
type PipelineMetrics struct {
	// Latency histograms (in milliseconds)
	FetchLatency  *Histogram
	EncodeLatency *Histogram
	BatchLatency  *Histogram
	WaitLatency   *Histogram // consumer time blocked on the prefetch queue

	// Counters
	Batches atomic.Uint64
	Errors  atomic.Uint64
	Records atomic.Uint64
	Epochs  atomic.Uint64

	startTime time.Time
	mu        sync.RWMutex
}

// NewPipelineMetrics creates a new metrics collector.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		FetchLatency:  NewHistogram(10000),
		EncodeLatency: NewHistogram(10000),
		BatchLatency:  NewHistogram(10000),
		WaitLatency:   NewHistogram(10000),
		startTime:     time.Now(),
	}
}

// PipelineStats is a snapshot of PipelineMetrics.
type PipelineStats struct {
	FetchLatency  LatencyStats `json:"fetch_latency"`
	EncodeLatency LatencyStats `json:"encode_latency"`
	BatchLatency  LatencyStats `json:"batch_latency"`
	WaitLatency   LatencyStats `json:"wait_latency"`

	Batches uint64 `json:"batches"`
	Errors  uint64 `json:"errors"`
	Records uint64 `json:"records"`
	Epochs  uint64 `json:"epochs"`

	BatchesPerSecond float64 `json:"batches_per_second"`
	Uptime           string  `json:"uptime"`
}

// GetStats returns a snapshot of the current statistics.
func (m *PipelineMetrics) GetStats() *PipelineStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.startTime)
	batches := m.Batches.Load()

	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(batches) / secs
	}

	return &PipelineStats{
		FetchLatency:     m.FetchLatency.Stats(),
		EncodeLatency:    m.EncodeLatency.Stats(),
		BatchLatency:     m.BatchLatency.Stats(),
		WaitLatency:      m.WaitLatency.Stats(),
		Batches:          batches,
		Errors:           m.Errors.Load(),
		Records:          m.Records.Load(),
		Epochs:           m.Epochs.Load(),
		BatchesPerSecond: rate,
		Uptime:           elapsed.Round(time.Second).String(),
	}
}

// Reset clears all metrics.
func (m *PipelineMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchLatency.Reset()
	m.EncodeLatency.Reset()
	m.BatchLatency.Reset()
	m.WaitLatency.Reset()

	m.Batches.Store(0)
	m.Errors.Store(0)
	m.Records.Store(0)
	m.Epochs.Store(0)

	m.startTime = time.Now()
}
