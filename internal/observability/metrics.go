// Package observability provides Prometheus metrics, OpenTelemetry tracing,
// and structured logging for find-anything.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds all Prometheus metrics for the find-anything server.
type MetricsCollector struct {
	// HTTP surface metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	// Inbox worker metrics
	InboxDepth       prometheus.Gauge
	InboxFailedDepth prometheus.Gauge
	BatchesTotal     *prometheus.CounterVec
	BatchDuration    prometheus.Histogram

	// Index growth metrics
	IndexedFilesTotal  prometheus.Counter
	IndexedChunksTotal prometheus.Counter

	// Query pipeline metrics
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryResults  *prometheus.HistogramVec

	// Chunk store metrics
	ChunkCacheHits   prometheus.Counter
	ChunkCacheMisses prometheus.Counter
	ArchiveRewrites  prometheus.Counter
	ArchiveCount     prometheus.Gauge

	// Rate limiting metrics
	RateLimitRequests  *prometheus.CounterVec
	RateLimitHits      *prometheus.CounterVec
	RateLimitDuration  *prometheus.HistogramVec
	RateLimitRemaining *prometheus.GaugeVec

	// System metrics
	SystemStartTime prometheus.Gauge
	SystemHealth    *prometheus.GaugeVec
}

// NewMetricsCollector creates and registers all Prometheus metrics.
func NewMetricsCollector(namespace string) *MetricsCollector {
	return NewMetricsCollectorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates metrics with a specific registry (for testing).
func NewMetricsCollectorWithRegistry(namespace string, reg prometheus.Registerer) *MetricsCollector {
	if namespace == "" {
		namespace = "findanything"
	}

	// Helper function to create auto-registered metrics
	autoCounterVec := func(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
		return promauto.With(reg).NewCounterVec(opts, labelNames)
	}

	autoHistogramVec := func(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
		return promauto.With(reg).NewHistogramVec(opts, labelNames)
	}

	autoGaugeVec := func(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
		return promauto.With(reg).NewGaugeVec(opts, labelNames)
	}

	autoCounter := func(opts prometheus.CounterOpts) prometheus.Counter {
		return promauto.With(reg).NewCounter(opts)
	}

	autoHistogram := func(opts prometheus.HistogramOpts) prometheus.Histogram {
		return promauto.With(reg).NewHistogram(opts)
	}

	autoGauge := func(opts prometheus.GaugeOpts) prometheus.Gauge {
		return promauto.With(reg).NewGauge(opts)
	}

	return &MetricsCollector{
		// HTTP surface metrics
		HTTPRequestsTotal: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"route"},
		),
		HTTPErrors: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_errors_total",
				Help:      "Total number of 5xx-class failures by route and error type",
			},
			[]string{"route", "error_type"},
		),

		// Inbox worker metrics
		InboxDepth: autoGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inbox_pending_batches",
				Help:      "Number of bulk request files waiting in the inbox",
			},
		),
		InboxFailedDepth: autoGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inbox_failed_batches",
				Help:      "Number of quarantined bulk request files in inbox/failed",
			},
		),
		BatchesTotal: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbox_batches_total",
				Help:      "Total number of inbox batches processed by outcome",
			},
			[]string{"status"},
		),
		BatchDuration: autoHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inbox_batch_duration_seconds",
				Help:      "Duration of one inbox batch transaction in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		// Index growth metrics
		IndexedFilesTotal: autoCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "indexed_files_total",
				Help:      "Total number of files indexed",
			},
		),
		IndexedChunksTotal: autoCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "indexed_chunks_total",
				Help:      "Total number of chunks appended to the archive store",
			},
		),

		// Query pipeline metrics
		QueryRequests: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_requests_total",
				Help:      "Total number of search requests by mode and status",
			},
			[]string{"mode", "status"},
		),
		QueryDuration: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Search request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"mode"},
		),
		QueryResults: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_results_count",
				Help:      "Number of results returned per search request",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"mode"},
		),

		// Chunk store metrics
		ChunkCacheHits: autoCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_cache_hits_total",
				Help:      "Total number of per-request chunk cache hits",
			},
		),
		ChunkCacheMisses: autoCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_cache_misses_total",
				Help:      "Total number of per-request chunk cache misses",
			},
		),
		ArchiveRewrites: autoCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_rewrites_total",
				Help:      "Total number of ZIP archive rewrites triggered by chunk removal",
			},
		),
		ArchiveCount: autoGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "archive_count",
				Help:      "Number of ZIP archives in the chunk store",
			},
		),

		// Rate limiting metrics
		RateLimitRequests: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_requests_total",
				Help:      "Total number of rate limit checks by limiter type and result",
			},
			[]string{"limiter_type", "result"},
		),
		RateLimitHits: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of rate limit hits by limiter type",
			},
			[]string{"limiter_type"},
		),
		RateLimitDuration: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_duration_seconds",
				Help:      "Rate limit check duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1},
			},
			[]string{"limiter_type"},
		),
		RateLimitRemaining: autoGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rate_limit_remaining_requests",
				Help:      "Number of remaining requests for rate limited clients",
			},
			[]string{"limiter_type", "identifier"},
		),

		// System metrics
		SystemStartTime: autoGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_start_time_seconds",
				Help:      "Unix timestamp when the system started",
			},
		),
		SystemHealth: autoGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_health_status",
				Help:      "System health status (1 = healthy, 0 = unhealthy)",
			},
			[]string{"component"},
		),
	}
}

// RecordHTTPRequest records metrics for one completed HTTP request.
func (m *MetricsCollector) RecordHTTPRequest(route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordHTTPError records a 5xx-class failure.
func (m *MetricsCollector) RecordHTTPError(route, errorType string) {
	m.HTTPErrors.WithLabelValues(route, errorType).Inc()
}

// SetInboxDepth updates the pending and quarantined inbox gauges.
func (m *MetricsCollector) SetInboxDepth(pending, failed int) {
	m.InboxDepth.Set(float64(pending))
	m.InboxFailedDepth.Set(float64(failed))
}

// RecordBatch records one inbox batch's outcome and duration.
func (m *MetricsCollector) RecordBatch(status string, duration time.Duration) {
	m.BatchesTotal.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(duration.Seconds())
}

// RecordIndexedFiles increments the indexed files counter.
func (m *MetricsCollector) RecordIndexedFiles(count int) {
	m.IndexedFilesTotal.Add(float64(count))
}

// RecordIndexedChunks increments the indexed chunks counter.
func (m *MetricsCollector) RecordIndexedChunks(count int) {
	m.IndexedChunksTotal.Add(float64(count))
}

// RecordQuery records metrics for one search request.
func (m *MetricsCollector) RecordQuery(mode, status string, duration time.Duration, resultCount int) {
	m.QueryRequests.WithLabelValues(mode, status).Inc()
	m.QueryDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.QueryResults.WithLabelValues(mode).Observe(float64(resultCount))
}

// RecordChunkCache adds one request's chunk cache tallies.
func (m *MetricsCollector) RecordChunkCache(hits, misses int) {
	m.ChunkCacheHits.Add(float64(hits))
	m.ChunkCacheMisses.Add(float64(misses))
}

// RecordArchiveRewrite increments the archive rewrite counter.
func (m *MetricsCollector) RecordArchiveRewrite() {
	m.ArchiveRewrites.Inc()
}

// SetArchiveCount updates the archive count gauge.
func (m *MetricsCollector) SetArchiveCount(count int) {
	m.ArchiveCount.Set(float64(count))
}

// SetSystemStartTime sets the system start time.
func (m *MetricsCollector) SetSystemStartTime(startTime time.Time) {
	m.SystemStartTime.Set(float64(startTime.Unix()))
}

// SetComponentHealth sets the health status of a component.
func (m *MetricsCollector) SetComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.SystemHealth.WithLabelValues(component).Set(value)
}

// RecordRateLimit records metrics for a rate limit check.
func (m *MetricsCollector) RecordRateLimit(limiterType, result string, duration time.Duration) {
	m.RateLimitRequests.WithLabelValues(limiterType, result).Inc()
	m.RateLimitDuration.WithLabelValues(limiterType).Observe(duration.Seconds())

	if result == "hit" {
		m.RateLimitHits.WithLabelValues(limiterType).Inc()
	}
}

// UpdateRateLimitRemaining updates the remaining requests gauge.
func (m *MetricsCollector) UpdateRateLimitRemaining(limiterType, identifier string, remaining int64) {
	m.RateLimitRemaining.WithLabelValues(limiterType, identifier).Set(float64(remaining))
}
