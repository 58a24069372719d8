package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/7and1/subtitleapi/internal/cachekey"
	"github.com/7and1/subtitleapi/internal/validate"
)

const maxBatchSize = 100

type subtitleRequest struct {
	VideoID    string `json:"video_id"`
	VideoURL   string `json:"video_url"`
	Language   string `json:"language"`
	CleanForAI *bool  `json:"clean_for_ai"`
	WebhookURL string `json:"webhook_url"`
}

func (req subtitleRequest) resolveVideoID() (string, bool) {
	if req.VideoID != "" {
		return req.VideoID, true
	}
	if req.VideoURL != "" {
		return cachekey.ExtractVideoID(req.VideoURL)
	}
	return "", false
}

func (req subtitleRequest) language() string {
	if req.Language == "" {
		return "en"
	}
	return req.Language
}

func (req subtitleRequest) cleanForAI() bool {
	if req.CleanForAI == nil {
		return true
	}
	return *req.CleanForAI
}

// handleCreateSubtitle services POST /api/v1/subtitles: a cache hit
// returns the transcript directly; a miss enqueues extraction and
// returns 202 with the job id.
func (s *Server) handleCreateSubtitle(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	var req subtitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body", "", nil)
		return
	}

	videoID, ok := req.resolveVideoID()
	if !ok {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "video_id or video_url is required", "", nil)
		return
	}
	if err := validate.IsVideoID("video_id", videoID); err != nil {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_VIDEO_ID", err.Error(), "", nil)
		return
	}
	language := req.language()
	if err := validate.IsLanguageCode("language", language); err != nil {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), "", nil)
		return
	}
	if req.WebhookURL != "" {
		if err := validate.IsURL("webhook_url", req.WebhookURL, false); err != nil {
			writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), "", nil)
			return
		}
	}

	if cached, hit, err := s.orch.GetCached(r.Context(), videoID, language); err != nil {
		s.log.Error("httpapi: get cached failed", "video_id", videoID, "error", err)
		writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read cache", "", nil)
		return
	} else if hit {
		writeJSON(w, reqID, http.StatusOK, fromCached(cached))
		return
	}

	jobID, err := s.orch.EnqueueExtraction(r.Context(), videoID, language, req.cleanForAI(), req.WebhookURL)
	if err != nil {
		s.log.Error("httpapi: enqueue failed", "video_id", videoID, "error", err)
		writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to enqueue extraction", "", nil)
		return
	}

	resp := map[string]any{
		"job_id":   jobID,
		"status":   "queued",
		"video_id": videoID,
		"language": language,
	}
	if req.WebhookURL != "" {
		resp["webhook_url"] = req.WebhookURL
	}
	writeJSON(w, reqID, http.StatusAccepted, resp)
}

// handleGetSubtitle services GET /api/v1/subtitles/{video_id}: a read-only
// cache lookup, never enqueues work.
func (s *Server) handleGetSubtitle(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodGet {
		writeProblem(w, reqID, http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	videoID := strings.TrimPrefix(r.URL.Path, "/api/v1/subtitles/")
	videoID = strings.Trim(videoID, "/")
	if err := validate.IsVideoID("video_id", videoID); err != nil {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_VIDEO_ID", err.Error(), "", nil)
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		language = "en"
	}

	cached, hit, err := s.orch.GetCached(r.Context(), videoID, language)
	if err != nil {
		s.log.Error("httpapi: get cached failed", "video_id", videoID, "error", err)
		writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read cache", "", nil)
		return
	}
	if !hit {
		writeProblem(w, reqID, http.StatusNotFound, "SUBTITLE_NOT_FOUND", "no cached subtitle for this video/language", "", nil)
		return
	}
	writeJSON(w, reqID, http.StatusOK, fromCached(cached))
}

type batchRequest struct {
	VideoIDs   []string `json:"video_ids"`
	Language   string   `json:"language"`
	CleanForAI *bool    `json:"clean_for_ai"`
	WebhookURL string   `json:"webhook_url"`
}

// handleBatchSubtitles services POST /api/v1/subtitles/batch: resolves as
// many video IDs as possible from cache, enqueues extraction for the rest.
func (s *Server) handleBatchSubtitles(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodPost {
		writeProblem(w, reqID, http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body", "", nil)
		return
	}
	if len(req.VideoIDs) == 0 {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "video_ids must not be empty", "", nil)
		return
	}
	if len(req.VideoIDs) > maxBatchSize {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "video_ids exceeds the maximum batch size of 100", "", nil)
		return
	}
	for _, id := range req.VideoIDs {
		if err := validate.IsVideoID("video_ids", id); err != nil {
			writeProblem(w, reqID, http.StatusBadRequest, "INVALID_VIDEO_ID", "invalid video id: "+id, "", nil)
			return
		}
	}
	language := req.Language
	if language == "" {
		language = "en"
	}
	if err := validate.IsLanguageCode("language", language); err != nil {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), "", nil)
		return
	}
	cleanForAI := true
	if req.CleanForAI != nil {
		cleanForAI = *req.CleanForAI
	}

	cachedMap := s.orch.GetCachedBatch(r.Context(), req.VideoIDs, language)

	jobIDs := make([]string, 0, len(req.VideoIDs))
	cachedOut := make([]any, 0, len(cachedMap))
	for _, videoID := range req.VideoIDs {
		if cached, ok := cachedMap[videoID]; ok {
			cachedOut = append(cachedOut, fromCached(cached))
			continue
		}
		jobID, err := s.orch.EnqueueExtraction(r.Context(), videoID, language, cleanForAI, req.WebhookURL)
		if err != nil {
			s.log.Error("httpapi: batch enqueue failed", "video_id", videoID, "error", err)
			continue
		}
		jobIDs = append(jobIDs, jobID)
	}

	writeJSON(w, reqID, http.StatusOK, map[string]any{
		"status":       "queued",
		"video_count":  len(req.VideoIDs),
		"queued_count": len(jobIDs),
		"cached_count": len(cachedOut),
		"job_ids":      jobIDs,
		"cached":       cachedOut,
	})
}
