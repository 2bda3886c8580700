package api

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects server metrics. Counters are kept both as atomics for
// the JSON /metricz snapshot and in a per-server Prometheus registry for
// /metrics.
type Metrics struct {
	startTime          time.Time
	requests           atomic.Int64
	serverErrors       atomic.Int64
	clientErrors       atomic.Int64
	attemptsPushed     atomic.Int64
	collectionsPushed  atomic.Int64
	collectionsDeleted atomic.Int64
	pullRequests       atomic.Int64

	registry   *prometheus.Registry
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec
	rowsWriten *prometheus.CounterVec
	pulls      prometheus.Counter
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds      float64 `json:"uptime_seconds"`
	Requests           int64   `json:"requests"`
	ServerErrors       int64   `json:"server_errors"`
	ClientErrors       int64   `json:"client_errors"`
	AttemptsPushed     int64   `json:"attempts_pushed"`
	CollectionsPushed  int64   `json:"collections_pushed"`
	CollectionsDeleted int64   `json:"collections_deleted"`
	PullRequests       int64   `json:"pull_requests"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		startTime: time.Now(),
		registry:  reg,
		reqTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pratica_sync_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		reqLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pratica_sync_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		rowsWriten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pratica_sync_rows_written_total",
			Help: "Rows written by kind and operation",
		}, []string{"kind", "op"}),
		pulls: factory.NewCounter(prometheus.CounterOpts{
			Name: "pratica_sync_pull_requests_total",
			Help: "Attempt and collection reads",
		}),
	}
}

// RecordRequest counts one finished request.
func (m *Metrics) RecordRequest(method string, code int, dur time.Duration) {
	m.requests.Add(1)
	switch {
	case code >= 500:
		m.serverErrors.Add(1)
	case code >= 400:
		m.clientErrors.Add(1)
	}
	m.reqTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.reqLatency.WithLabelValues(method).Observe(dur.Seconds())
}

// RecordAttemptsPushed adds n to the accepted attempts counter.
func (m *Metrics) RecordAttemptsPushed(n int) {
	m.attemptsPushed.Add(int64(n))
	m.rowsWriten.WithLabelValues("attempt", "upsert").Add(float64(n))
}

// RecordCollectionsPushed adds n to the accepted collections counter.
func (m *Metrics) RecordCollectionsPushed(n int) {
	m.collectionsPushed.Add(int64(n))
	m.rowsWriten.WithLabelValues("collection", "upsert").Add(float64(n))
}

// RecordCollectionsDeleted adds n to the deleted collections counter.
func (m *Metrics) RecordCollectionsDeleted(n int) {
	m.collectionsDeleted.Add(int64(n))
	m.rowsWriten.WithLabelValues("collection", "delete").Add(float64(n))
}

// RecordPullRequest increments the pull request counter.
func (m *Metrics) RecordPullRequest() {
	m.pullRequests.Add(1)
	m.pulls.Inc()
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:      time.Since(m.startTime).Seconds(),
		Requests:           m.requests.Load(),
		ServerErrors:       m.serverErrors.Load(),
		ClientErrors:       m.clientErrors.Load(),
		AttemptsPushed:     m.attemptsPushed.Load(),
		CollectionsPushed:  m.collectionsPushed.Load(),
		CollectionsDeleted: m.collectionsDeleted.Load(),
		PullRequests:       m.pullRequests.Load(),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
