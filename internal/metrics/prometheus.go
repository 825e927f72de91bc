// Package metrics exposes Prometheus collectors for the batch pipeline and
// an in-process latency summary printed at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts batches produced, by split (train/validation).
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubeml_batches_total",
			Help: "Total number of training batches produced",
		},
		[]string{"split"},
	)

	// BatchErrorsTotal counts batches that failed to build.
	BatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubeml_batch_errors_total",
			Help: "Total number of batches that failed to build",
		},
		[]string{"split"},
	)

	// BatchDuration tracks the time to fetch and encode one batch.
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cubeml_batch_duration_seconds",
			Help:    "Time to fetch and encode one batch",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"split"},
	)

	// RecordsTotal counts records drawn per stream.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubeml_records_total",
			Help: "Total number of records drawn into batches",
		},
		[]string{"split", "stream"},
	)

	// SliceSize is the configured per-batch slice size of each stream.
	SliceSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cubeml_slice_size",
			Help: "Records drawn from each stream per batch",
		},
		[]string{"split", "stream"},
	)

	// StreamRecords is the record count of each stream.
	StreamRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cubeml_stream_records",
			Help: "Number of records in each stream",
		},
		[]string{"split", "stream"},
	)

	// EpochsTotal counts completed epoch boundaries.
	EpochsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubeml_epochs_total",
			Help: "Total number of epoch boundaries crossed",
		},
		[]string{"split"},
	)

	// PrefetchDepth is the number of ready batches waiting in the prefetch queue.
	PrefetchDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cubeml_prefetch_depth",
			Help: "Batches built ahead and waiting to be consumed",
		},
		[]string{"split"},
	)

	// ShardLoadsTotal counts shard files decoded by paginated stores.
	ShardLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubeml_shard_loads_total",
			Help: "Total number of shard files decoded",
		},
		[]string{"stream"},
	)
)

// WriteTextfile writes every registered metric in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
