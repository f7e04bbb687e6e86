package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_sync_runs_total",
		Help: "Total number of vendor sync runs by vendor and terminal status",
	}, []string{"vendor", "status"})

	SyncDryRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_sync_dry_runs_total",
		Help: "Total number of preview (dry-run) dispatches by vendor",
	}, []string{"vendor"})

	NormalizeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_sync_normalize_failures_total",
		Help: "Total number of normalization failures",
	}, []string{"vendor", "reason"})

	ItemsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_sync_items_processed_total",
		Help: "Total number of catalog items processed by diff status",
	}, []string{"vendor", "status"})

	DiffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vendor_sync_diff_duration_seconds",
		Help:    "Latency of diff computation",
		Buckets: prometheus.DefBuckets,
	})

	ApplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vendor_sync_apply_duration_seconds",
		Help:    "Latency of transactional diff apply",
		Buckets: prometheus.DefBuckets,
	}, []string{"vendor"})

	ApplyRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_sync_apply_retries_total",
		Help: "Total number of apply transaction retries",
	}, []string{"vendor"})

	SnapshotReadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vendor_sync_snapshot_read_duration_seconds",
		Help:    "Latency of vendor snapshot reads",
		Buckets: prometheus.DefBuckets,
	})

	SourceFetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_sync_source_fetch_failures_total",
		Help: "Total number of catalog source fetch failures",
	}, []string{"vendor"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
