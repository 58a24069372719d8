// Package metrics provides Prometheus instrumentation for the subtitle
// API and worker processes.
//
// Each process registers its metrics at package init time via promauto and
// exposes them at GET /metrics via Handler(). Standard metrics exposed
// automatically by prometheus/client_golang:
//   - go_goroutines, go_gc_duration_seconds, etc. (Go runtime)
//   - process_cpu_seconds_total, process_open_fds, etc. (process)
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ── Counters ──────────────────────────────────────────────────────────────

// CacheHits counts read-through cache hits by tier (memory|redis|postgres).
var CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtitleapi_cache_hits_total",
	Help: "Cache hits by tier.",
}, []string{"tier"})

// CacheMisses counts read-through cache misses that fell through every tier.
var CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "subtitleapi_cache_misses_total",
	Help: "Cache misses across all tiers.",
})

// ExtractionAttempts counts extraction attempts by engine and routing mode.
var ExtractionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtitleapi_extraction_attempts_total",
	Help: "Extraction attempts by engine and mode.",
}, []string{"engine", "mode"})

// ExtractionSuccess counts successful extractions by engine.
var ExtractionSuccess = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtitleapi_extraction_success_total",
	Help: "Successful extractions by engine.",
}, []string{"engine"})

// JobStatusTransitions counts extraction job state-machine transitions.
var JobStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtitleapi_job_status_transitions_total",
	Help: "Extraction job status transitions.",
}, []string{"status"})

// WebhookDeliveries counts webhook delivery outcomes.
var WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtitleapi_webhook_deliveries_total",
	Help: "Webhook delivery outcomes.",
}, []string{"outcome"})

// RateLimitDecisions counts rate-limiter allow/deny decisions.
var RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtitleapi_rate_limit_decisions_total",
	Help: "Rate limiter decisions.",
}, []string{"allowed"})

// HTTPRequests counts HTTP requests by method, path, and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtitleapi_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "path", "status"})

// ── Histograms ────────────────────────────────────────────────────────────

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "subtitleapi_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "path"})

// ExtractionDuration tracks end-to-end extraction latency by engine.
var ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "subtitleapi_extraction_duration_seconds",
	Help:    "Time to complete a single extraction attempt.",
	Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
}, []string{"engine"})

// ── Handler ───────────────────────────────────────────────────────────────

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ── Middleware ────────────────────────────────────────────────────────────

// Middleware wraps an HTTP handler to record request counts and latency.
// path should be a templated route (e.g. "/api/v1/subtitles/:id"), not the
// raw URL, to keep label cardinality bounded.
func Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, path).Observe(dur)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// ── Init (registry-scoped) ──────────────────────────────────────────────

// Init registers an isolated copy of every metric with reg, for tests that
// want to avoid colliding with the global default registry.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(
		prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subtitleapi_cache_hits_total", Help: "Cache hits by tier."}, []string{"tier"}),
		prometheus.NewCounter(prometheus.CounterOpts{Name: "subtitleapi_cache_misses_total", Help: "Cache misses across all tiers."}),
		prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subtitleapi_extraction_attempts_total", Help: "Extraction attempts by engine and mode."}, []string{"engine", "mode"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subtitleapi_extraction_success_total", Help: "Successful extractions by engine."}, []string{"engine"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subtitleapi_job_status_transitions_total", Help: "Extraction job status transitions."}, []string{"status"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subtitleapi_webhook_deliveries_total", Help: "Webhook delivery outcomes."}, []string{"outcome"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subtitleapi_rate_limit_decisions_total", Help: "Rate limiter decisions."}, []string{"allowed"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{Name: "subtitleapi_http_requests_total", Help: "Total HTTP requests handled."}, []string{"method", "path", "status"}),
		prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "subtitleapi_http_request_duration_seconds", Help: "HTTP request latency in seconds.", Buckets: prometheus.DefBuckets}, []string{"method", "path"}),
		prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "subtitleapi_extraction_duration_seconds", Help: "Time to complete a single extraction attempt.", Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60}}, []string{"engine"}),
	)
}
