package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// newTestMetricsCollector creates a MetricsCollector backed by a private
// registry so tests never collide with the process-global one.
func newTestMetricsCollector(t *testing.T) (*MetricsCollector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewMetricsCollectorWithRegistry("test", registry), registry
}

func TestNewMetricsCollectorDefaultNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry("", registry)
	assert.NotNil(t, collector.HTTPRequestsTotal)
	assert.NotNil(t, collector.InboxDepth)
	assert.NotNil(t, collector.QueryRequests)
}

func TestRecordHTTPRequest(t *testing.T) {
	tests := []struct {
		name     string
		route    string
		status   string
		duration time.Duration
	}{
		{name: "successful search", route: "/api/v1/search", status: "200", duration: 25 * time.Millisecond},
		{name: "accepted bulk", route: "/api/v1/bulk", status: "202", duration: 5 * time.Millisecond},
		{name: "not found", route: "/api/v1/file", status: "404", duration: time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, _ := newTestMetricsCollector(t)
			collector.RecordHTTPRequest(tt.route, tt.status, tt.duration)

			count := testutil.ToFloat64(collector.HTTPRequestsTotal.WithLabelValues(tt.route, tt.status))
			assert.Equal(t, 1.0, count)
		})
	}
}

func TestRecordHTTPError(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.RecordHTTPError("/api/v1/search", "internal")
	collector.RecordHTTPError("/api/v1/search", "internal")

	count := testutil.ToFloat64(collector.HTTPErrors.WithLabelValues("/api/v1/search", "internal"))
	assert.Equal(t, 2.0, count)
}

func TestSetInboxDepth(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.SetInboxDepth(7, 2)
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.InboxDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.InboxFailedDepth))

	// Gauges track the current depth, not a running total.
	collector.SetInboxDepth(0, 2)
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.InboxDepth))
}

func TestRecordBatch(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		duration time.Duration
	}{
		{name: "committed batch", status: "ok", duration: 120 * time.Millisecond},
		{name: "quarantined batch", status: "failed", duration: 10 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, _ := newTestMetricsCollector(t)
			collector.RecordBatch(tt.status, tt.duration)

			count := testutil.ToFloat64(collector.BatchesTotal.WithLabelValues(tt.status))
			assert.Equal(t, 1.0, count)
		})
	}
}

func TestRecordIndexedFiles(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.RecordIndexedFiles(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.IndexedFilesTotal))

	collector.RecordIndexedFiles(3)
	assert.Equal(t, 8.0, testutil.ToFloat64(collector.IndexedFilesTotal))
}

func TestRecordIndexedChunks(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.RecordIndexedChunks(100)
	assert.Equal(t, 100.0, testutil.ToFloat64(collector.IndexedChunksTotal))

	collector.RecordIndexedChunks(50)
	assert.Equal(t, 150.0, testutil.ToFloat64(collector.IndexedChunksTotal))
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name        string
		mode        string
		status      string
		duration    time.Duration
		resultCount int
	}{
		{name: "fuzzy hit", mode: "fuzzy", status: "ok", duration: 40 * time.Millisecond, resultCount: 12},
		{name: "exact empty", mode: "exact", status: "ok", duration: 8 * time.Millisecond, resultCount: 0},
		{name: "rejected regex", mode: "regex", status: "invalid", duration: time.Millisecond, resultCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, _ := newTestMetricsCollector(t)
			collector.RecordQuery(tt.mode, tt.status, tt.duration, tt.resultCount)

			count := testutil.ToFloat64(collector.QueryRequests.WithLabelValues(tt.mode, tt.status))
			assert.Equal(t, 1.0, count)
		})
	}
}

func TestRecordChunkCache(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.RecordChunkCache(9, 3)
	assert.Equal(t, 9.0, testutil.ToFloat64(collector.ChunkCacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.ChunkCacheMisses))
}

func TestRecordArchiveRewrite(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.RecordArchiveRewrite()
	collector.RecordArchiveRewrite()
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.ArchiveRewrites))
}

func TestSetArchiveCount(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.SetArchiveCount(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(collector.ArchiveCount))
}

func TestSetSystemStartTime(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	collector.SetSystemStartTime(start)
	assert.Equal(t, float64(start.Unix()), testutil.ToFloat64(collector.SystemStartTime))
}

func TestSetComponentHealth(t *testing.T) {
	tests := []struct {
		name      string
		component string
		healthy   bool
		want      float64
	}{
		{name: "healthy worker", component: "inbox_worker", healthy: true, want: 1.0},
		{name: "unhealthy archive store", component: "archive_store", healthy: false, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, _ := newTestMetricsCollector(t)
			collector.SetComponentHealth(tt.component, tt.healthy)

			value := testutil.ToFloat64(collector.SystemHealth.WithLabelValues(tt.component))
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestRecordRateLimit(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.RecordRateLimit("bulk", "allowed", 2*time.Millisecond)
	collector.RecordRateLimit("bulk", "hit", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RateLimitRequests.WithLabelValues("bulk", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RateLimitRequests.WithLabelValues("bulk", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RateLimitHits.WithLabelValues("bulk")))
}

func TestUpdateRateLimitRemaining(t *testing.T) {
	collector, _ := newTestMetricsCollector(t)

	collector.UpdateRateLimitRemaining("search", "client-1", 37)
	assert.Equal(t, 37.0, testutil.ToFloat64(collector.RateLimitRemaining.WithLabelValues("search", "client-1")))
}
