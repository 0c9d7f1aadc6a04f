package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the shelf service
type Metrics struct {
	// Widget metrics
	loadsTotal   *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	items        *prometheus.GaugeVec

	// Rotation metrics
	rotations *prometheus.CounterVec

	// Auth metrics
	authAttempts *prometheus.CounterVec

	// Configuration reload metrics
	configReloads *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics instance backed by its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_widget_loads_total",
				Help: "Total number of widget loads by outcome",
			},
			[]string{"widget", "outcome"},
		),

		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelf_widget_load_duration_seconds",
				Help:    "Widget load latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"widget"},
		),

		items: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shelf_widget_items",
				Help: "Number of view models currently held by a widget",
			},
			[]string{"widget"},
		),

		rotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_rotation_advances_total",
				Help: "Total number of rotation advances by trigger",
			},
			[]string{"widget", "trigger"},
		),

		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_auth_attempts_total",
				Help: "Total number of identity provider calls by operation and status",
			},
			[]string{"operation", "status"},
		),

		configReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_config_reloads_total",
				Help: "Total number of configuration reload attempts by status",
			},
			[]string{"status"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelf_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.loadsTotal,
		m.loadDuration,
		m.items,
		m.rotations,
		m.authAttempts,
		m.configReloads,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordLoad records the outcome of a widget load
func (m *Metrics) RecordLoad(widget, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.loadsTotal.WithLabelValues(widget, outcome).Inc()
	m.loadDuration.WithLabelValues(widget).Observe(duration.Seconds())
}

// SetItems updates the number of view models held by a widget
func (m *Metrics) SetItems(widget string, n int) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(widget).Set(float64(n))
}

// RecordRotation records a rotation advance
func (m *Metrics) RecordRotation(widget, trigger string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(widget, trigger).Inc()
}

// RecordAuth records an identity provider call
func (m *Metrics) RecordAuth(operation string, ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.authAttempts.WithLabelValues(operation, status).Inc()
}

// RecordConfigReload records a configuration reload attempt
func (m *Metrics) RecordConfigReload(status string) {
	if m == nil {
		return
	}
	m.configReloads.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware creates HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, EndpointName(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// EndpointName extracts a normalized endpoint name from the path so label
// cardinality stays bounded.
func EndpointName(path string) string {
	switch {
	case path == "/health":
		return "health"
	case path == "/metrics":
		return "metrics"
	case strings.HasPrefix(path, "/api/auth/"):
		return "auth"
	case strings.HasPrefix(path, "/api/testimonials"):
		return "testimonials"
	case strings.HasPrefix(path, "/api/"):
		rest := strings.TrimPrefix(path, "/api/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		switch rest {
		case "books", "upcoming", "menu":
			return rest
		}
		return "unknown"
	default:
		return "unknown"
	}
}
