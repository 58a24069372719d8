package httpapi

import (
	"net"
	"net/http"
	"strings"

	"github.com/7and1/subtitleapi/internal/cachekey"
)

// clientIP extracts the caller's address, preferring a proxy-supplied
// X-Forwarded-For (first hop) over RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimited wraps next with the per-(client-ip,endpoint) token bucket. A
// nil limiter disables rate limiting entirely (e.g. for admin-only test
// wiring).
func (s *Server) rateLimited(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)
		if s.limiter == nil {
			next(w, r)
			return
		}
		key := cachekey.Rate(clientIP(r), endpoint)
		res := s.limiter.Check(r.Context(), key)
		writeRateLimitHeaders(w, res, s.limiter.Policy())
		if !res.Allowed {
			writeProblem(w, reqID, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"rate limit exceeded", "retry after the window resets", map[string]any{
					"retry_after": res.ResetAt.Unix(),
					"reset_at":    res.ResetAt.Unix(),
				})
			return
		}
		next(w, r)
	}
}
