package httpapi

import (
	"net/http"
	"strings"

	"github.com/7and1/subtitleapi/internal/metrics"
)

// RegisterRoutes wires every handler onto mux, matching the teacher's flat
// mux.HandleFunc registration idiom. Every route is wrapped in
// metrics.Middleware under its own normalized path label.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(pattern, h))
	}

	// Liveness / readiness.
	route("/health", s.handleHealth)
	route("/live", s.handleLive)
	route("/status", s.handleStatus)
	mux.Handle("/metrics", metrics.Handler())

	// Subtitle retrieval / extraction.
	route("/api/v1/subtitles", s.routeSubtitlesRoot)
	route("/api/v1/subtitles/batch", s.rateLimited("/api/v1/subtitles/batch", s.handleBatchSubtitles))
	route("/api/v1/subtitles/", s.rateLimited("/api/v1/subtitles", s.handleGetSubtitle))

	// Job polling.
	route("/api/v1/job/", s.handleGetJob)

	// Admin endpoints, gated behind the auth middleware.
	mux.Handle("/api/v1/admin/cache/clear", metrics.Middleware("/api/v1/admin/cache/clear", s.gate.RequireAdmin(http.HandlerFunc(s.routeAdminCacheClearRoot))))
	mux.Handle("/api/v1/admin/cache/clear/", metrics.Middleware("/api/v1/admin/cache/clear/", s.gate.RequireAdmin(http.HandlerFunc(s.handleAdminCacheClearVideo))))
	mux.Handle("/api/v1/admin/queue/stats", metrics.Middleware("/api/v1/admin/queue/stats", s.gate.RequireAdmin(http.HandlerFunc(s.handleAdminQueueStats))))
	mux.Handle("/api/v1/admin/rate-limit/stats/", metrics.Middleware("/api/v1/admin/rate-limit/stats/", s.gate.RequireAdmin(http.HandlerFunc(s.handleAdminRateLimitStats))))
	mux.Handle("/api/v1/admin/rate-limit/reset/", metrics.Middleware("/api/v1/admin/rate-limit/reset/", s.gate.RequireAdmin(http.HandlerFunc(s.handleAdminRateLimitReset))))

	// Unversioned /api/<path> redirects to /api/v1/<path>.
	route("/api/", s.handleDeprecatedAPIPath)
}

// routeSubtitlesRoot dispatches POST /api/v1/subtitles (create/resolve).
func (s *Server) routeSubtitlesRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, requestID(r), http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	s.rateLimited("/api/v1/subtitles", s.handleCreateSubtitle)(w, r)
}

// routeAdminCacheClearRoot dispatches POST /api/v1/admin/cache/clear.
func (s *Server) routeAdminCacheClearRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, requestID(r), http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	s.handleAdminCacheClear(w, r)
}

// handleDeprecatedAPIPath 308-redirects unversioned /api/<path> requests to
// /api/v1/<path>, per the deprecation contract.
func (s *Server) handleDeprecatedAPIPath(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/v1/") {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/")
	target := "/api/v1/" + rest
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	w.Header().Set("Location", target)
	w.Header().Set("X-API-Deprecation", "true")
	w.Header().Set("X-API-Version", apiVersionHeader)
	w.WriteHeader(http.StatusPermanentRedirect)
}
