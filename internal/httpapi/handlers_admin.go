package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/7and1/subtitleapi/internal/cachekey"
)

// adminRateLimitEndpoint is the endpoint bucket admin rate-limit
// introspection/reset operates on: the only endpoint the token bucket
// actually guards in this service.
const adminRateLimitEndpoint = "/api/v1/subtitles"

// handleAdminCacheClear services POST /api/v1/admin/cache/clear. It always
// clears the in-process and shared caches; purge_db=true additionally
// deletes every durable subtitle record.
func (s *Server) handleAdminCacheClear(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	purgeDB, _ := strconv.ParseBool(r.URL.Query().Get("purge_db"))

	if s.tier1 != nil {
		s.tier1.Clear()
	}
	deletedFromRedis := 0
	if s.tier2 != nil {
		deletedFromRedis = s.tier2.DeletePattern(r.Context(), "youtube:subtitle:*")
	}

	var deletedDB int64
	if purgeDB && s.repo != nil {
		n, err := s.repo.ClearSubtitles(r.Context(), "")
		if err != nil {
			s.log.Error("httpapi: purge db failed", "error", err)
			writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to purge database records", "", nil)
			return
		}
		deletedDB = n
	}

	writeJSON(w, reqID, http.StatusOK, map[string]any{
		"status":             "ok",
		"deleted_cache_keys": deletedFromRedis,
		"deleted_db_records": deletedDB,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAdminCacheClearVideo services DELETE /api/v1/admin/cache/clear/{video_id}.
func (s *Server) handleAdminCacheClearVideo(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodDelete {
		writeProblem(w, reqID, http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	videoID := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/cache/clear/")
	videoID = strings.Trim(videoID, "/")
	if videoID == "" {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "video_id is required", "", nil)
		return
	}
	language := r.URL.Query().Get("language")

	if language != "" {
		ck := cachekey.Cache(videoID, language)
		if s.tier1 != nil {
			s.tier1.Delete(ck)
		}
		if s.tier2 != nil {
			s.tier2.Delete(r.Context(), ck)
		}
	} else if s.tier2 != nil {
		s.tier2.DeletePattern(r.Context(), "youtube:subtitle:"+videoID+":*")
	}

	writeJSON(w, reqID, http.StatusOK, map[string]any{
		"status":   "ok",
		"video_id": videoID,
	})
}

// handleAdminQueueStats services GET /api/v1/admin/queue/stats.
func (s *Server) handleAdminQueueStats(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodGet {
		writeProblem(w, reqID, http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	depth, err := s.q.Depth(r.Context())
	if err != nil {
		s.log.Error("httpapi: queue depth failed", "error", err)
		writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read queue stats", "", nil)
		return
	}
	writeJSON(w, reqID, http.StatusOK, map[string]any{
		"queue_depth": depth,
	})
}

// handleAdminRateLimitStats services GET /api/v1/admin/rate-limit/stats/{ip}.
func (s *Server) handleAdminRateLimitStats(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodGet {
		writeProblem(w, reqID, http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	ip := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/rate-limit/stats/")
	ip = strings.Trim(ip, "/")
	if ip == "" {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "ip is required", "", nil)
		return
	}
	if s.limiter == nil {
		writeProblem(w, reqID, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "rate limiter not configured", "", nil)
		return
	}
	key := cachekey.Rate(ip, adminRateLimitEndpoint)
	res := s.limiter.Peek(r.Context(), key)
	writeJSON(w, reqID, http.StatusOK, map[string]any{
		"ip":        ip,
		"limit":     res.Limit,
		"remaining": res.Remaining,
		"reset_at":  res.ResetAt.Unix(),
		"policy":    s.limiter.Policy(),
	})
}

// handleAdminRateLimitReset services POST /api/v1/admin/rate-limit/reset/{ip}.
func (s *Server) handleAdminRateLimitReset(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodPost {
		writeProblem(w, reqID, http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	ip := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/rate-limit/reset/")
	ip = strings.Trim(ip, "/")
	if ip == "" {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "ip is required", "", nil)
		return
	}
	if s.limiter == nil {
		writeProblem(w, reqID, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "rate limiter not configured", "", nil)
		return
	}
	key := cachekey.Rate(ip, adminRateLimitEndpoint)
	if err := s.limiter.Reset(r.Context(), key); err != nil {
		s.log.Error("httpapi: rate limit reset failed", "ip", ip, "error", err)
		writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to reset rate limit bucket", "", nil)
		return
	}
	writeJSON(w, reqID, http.StatusOK, map[string]any{"status": "ok", "ip": ip})
}
