package httpapi

import (
	"context"
	"net/http"
	"time"
)

type healthBody struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	MemoryCache *memCacheStats    `json:"memory_cache,omitempty"`
}

type memCacheStats struct {
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := map[string]string{"redis": "unknown", "postgres": "unknown"}
	healthy := true

	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			components["redis"] = "down"
			healthy = false
		} else {
			components["redis"] = "ok"
		}
	}
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			components["postgres"] = "down"
			healthy = false
		} else {
			components["postgres"] = "ok"
		}
	}

	body := healthBody{Components: components}
	if healthy {
		body.Status = "ok"
	} else {
		body.Status = "degraded"
	}
	if s.tier1 != nil {
		st := s.tier1.Stats()
		body.MemoryCache = &memCacheStats{Size: s.tier1.Size(), HitRate: st.HitRate()}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, reqID, status, body)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, requestID(r), http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, requestID(r), http.StatusOK, map[string]any{
		"service":     "subtitleapi",
		"version":     s.version,
		"api_version": s.apiVersion,
	})
}
