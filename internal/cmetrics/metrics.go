// Package cmetrics exposes Prometheus collectors for the storage,
// buffer pool, and execution layers. The engine never starts its own
// HTTP listener: the (out-of-scope) gRPC server registers these
// collectors with its own registry.
package cmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Buffer pool.
	BufferPoolHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cottontail_buffer_pool_hits_total",
		Help: "Buffer pool lookups satisfied by an already-cached page.",
	})
	BufferPoolMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cottontail_buffer_pool_misses_total",
		Help: "Buffer pool lookups that required a disk read.",
	})
	BufferPoolEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cottontail_buffer_pool_evictions_total",
		Help: "Pages evicted from the buffer pool to make room.",
	})
	BufferPoolPinned = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cottontail_buffer_pool_pinned_pages",
		Help: "Pages currently pinned in the buffer pool.",
	})

	// Disk manager.
	PagesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cottontail_pages_read_total",
		Help: "Pages read from disk across all open files.",
	})
	PagesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cottontail_pages_written_total",
		Help: "Pages written to disk across all open files.",
	})
	WALBytesAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cottontail_wal_bytes_appended_total",
		Help: "Bytes appended to write-ahead log files.",
	})
	LockWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cottontail_file_lock_wait_seconds",
		Help:    "Time spent waiting to acquire an exclusive file lock.",
		Buckets: prometheus.DefBuckets,
	})

	// Execution.
	ScanWorkersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cottontail_knn_scan_workers_active",
		Help: "Worker tasks currently executing a parallel kNN scan.",
	})
	ScanRowsVisited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cottontail_knn_scan_rows_visited_total",
		Help: "Tuples visited across all kNN scans.",
	})
)

// Collectors returns every metric defined by this package, for callers
// that want to register them with a custom prometheus.Registerer.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		BufferPoolHits, BufferPoolMisses, BufferPoolEvictions, BufferPoolPinned,
		PagesRead, PagesWritten, WALBytesAppended, LockWaitSeconds,
		ScanWorkersActive, ScanRowsVisited,
	}
}
