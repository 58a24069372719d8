// metrics_test.go — Unit tests for Prometheus metrics.
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestInit_RegistersWithoutPanic verifies that calling Init with a fresh
// registry does not panic. Successful registration is the invariant — if
// any metric descriptor is invalid or duplicated within the registry,
// MustRegister panics.
func TestInit_RegistersWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)
}

// TestInit_DoubleRegistrationPanics confirms that registering the same
// metric names twice to the same registry panics (standard prometheus
// behavior). This proves Init really is registering something.
func TestInit_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on double registration, but Init did not panic")
		}
	}()
	Init(reg)
}

// TestCacheHits_IncrementsByTier confirms the cache-hit counter vec tracks
// separate series per tier label.
func TestCacheHits_IncrementsByTier(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_cache_hits_total",
	}, []string{"tier"})
	reg.MustRegister(counter)

	counter.WithLabelValues("memory").Inc()
	counter.WithLabelValues("memory").Inc()
	counter.WithLabelValues("redis").Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	var total float64
	for _, mf := range mfs {
		if mf.GetName() == "test_cache_hits_total" {
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
		}
	}
	if total != 3 {
		t.Errorf("expected 3 total cache hits, got %v", total)
	}
}

// TestExtractionDuration_Observes confirms the histogram accepts
// observations keyed by engine.
func TestExtractionDuration_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_extraction_duration_seconds",
		Buckets: []float64{1, 5, 10},
	}, []string{"engine"})
	reg.MustRegister(hist)

	hist.WithLabelValues("primary").Observe(0.5)
	hist.WithLabelValues("primary").Observe(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	var sampleCount uint64
	for _, mf := range mfs {
		if mf.GetName() == "test_extraction_duration_seconds" {
			for _, m := range mf.GetMetric() {
				sampleCount += m.GetHistogram().GetSampleCount()
			}
		}
	}
	if sampleCount != 2 {
		t.Errorf("expected 2 observations, got %d", sampleCount)
	}
}

// TestHandler_Returns200 confirms the metrics HTTP handler responds
// correctly.
func TestHandler_Returns200(t *testing.T) {
	h := Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Handler() status = %d; want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "go_") && !strings.Contains(body, "# HELP") {
		t.Error("expected Prometheus text format in response body")
	}
}

// TestMiddleware_RecordsMetrics confirms the HTTP middleware records a
// request against the global HTTPRequests/HTTPDuration series.
func TestMiddleware_RecordsMetrics(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware("/api/v1/subtitles", inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subtitles", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("wrapped handler returned %d; want 204", w.Code)
	}

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "subtitleapi_http_requests_total" {
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "path" && lp.GetValue() == "/api/v1/subtitles" {
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("subtitleapi_http_requests_total metric not found for path=/api/v1/subtitles after middleware call")
	}
}
