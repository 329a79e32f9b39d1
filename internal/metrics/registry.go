package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Operation outcomes used as the "status" label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Registry holds all Prometheus metrics for the upload server.
// A nil *Registry is valid and records nothing.
type Registry struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec

	// Upload metrics
	uploadOperationsTotal *prometheus.CounterVec
	chunkBytesTotal       prometheus.Counter
	artifactBytes         prometheus.Histogram
	completeDuration      prometheus.Histogram
	sessionsReapedTotal   prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics defined
func NewRegistry() *Registry {
	m := &Registry{
		registry: prometheus.NewRegistry(),
	}

	m.initializeMetrics()
	return m
}

func (m *Registry) initializeMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	m.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "Size of HTTP request bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
		},
		[]string{"method", "endpoint"},
	)

	m.uploadOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_upload_operations_total",
			Help: "Total number of upload session operations",
		},
		[]string{"operation", "status"},
	)

	m.chunkBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parcel_chunk_bytes_total",
			Help: "Total number of chunk bytes accepted into scratch storage",
		},
	)

	m.artifactBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parcel_artifact_size_bytes",
			Help:    "Size of reassembled artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12), // 1KB to 4GB
		},
	)

	m.completeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parcel_complete_duration_seconds",
			Help:    "Duration of upload reassembly in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.sessionsReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parcel_sessions_reaped_total",
			Help: "Total number of abandoned upload sessions removed by the reaper",
		},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestSize,
		m.uploadOperationsTotal,
		m.chunkBytesTotal,
		m.artifactBytes,
		m.completeDuration,
		m.sessionsReapedTotal,
	)
}

// GetRegistry returns the underlying Prometheus registry
func (m *Registry) GetRegistry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request metric
func (m *Registry) RecordHTTPRequest(method, endpoint, status string, duration float64, requestSize int64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	if requestSize > 0 {
		m.httpRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	}
}

// RecordUploadOperation counts an init, chunk, complete, abort or status call.
func (m *Registry) RecordUploadOperation(operation string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.uploadOperationsTotal.WithLabelValues(operation, status).Inc()
}

// AddChunkBytes records bytes committed as a chunk.
func (m *Registry) AddChunkBytes(n int64) {
	if m == nil {
		return
	}
	m.chunkBytesTotal.Add(float64(n))
}

// ObserveCompletion records a successful reassembly.
func (m *Registry) ObserveCompletion(size int64, duration float64) {
	if m == nil {
		return
	}
	m.artifactBytes.Observe(float64(size))
	m.completeDuration.Observe(duration)
}

// AddSessionsReaped records sessions removed by the reaper.
func (m *Registry) AddSessionsReaped(n int) {
	if m == nil {
		return
	}
	m.sessionsReapedTotal.Add(float64(n))
}
