package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/7and1/subtitleapi/internal/store"
)

type jobBody struct {
	JobID      string          `json:"job_id"`
	Status     string          `json:"status"`
	EnqueuedAt *int64          `json:"enqueued_at,omitempty"`
	EndedAt    *int64          `json:"ended_at,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	ExcInfo    *string         `json:"exc_info,omitempty"`
}

// handleGetJob services GET /api/v1/job/{job_id}. Like the original
// RQ-backed service's get_job, the queue's own status snapshot is the
// primary source of truth (queued, started, finished, failed, ...); the
// durable record is consulted only once the queue no longer knows the
// job, either because it never existed or its status entry has expired.
// A job_id neither source recognizes is reported as status "not_found"
// rather than a 404, so polling clients never need to special-case 404.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodGet {
		writeProblem(w, reqID, http.StatusNotFound, "INVALID_REQUEST", "method not allowed on this path", "", nil)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/job/")
	jobID = strings.Trim(jobID, "/")
	if jobID == "" {
		writeProblem(w, reqID, http.StatusBadRequest, "INVALID_REQUEST", "job_id is required", "", nil)
		return
	}

	snap, err := s.q.Fetch(r.Context(), jobID)
	if err != nil {
		s.log.Error("httpapi: queue fetch failed", "job_id", jobID, "error", err)
		writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read job", "", nil)
		return
	}
	if snap != nil {
		body := jobBody{JobID: snap.JobID, Status: snap.Status, EnqueuedAt: &snap.EnqueuedAt}
		if snap.EndedAt != 0 {
			body.EndedAt = &snap.EndedAt
		}
		if len(snap.Result) > 0 {
			body.Result = snap.Result
		}
		if snap.ExcInfo != "" {
			body.ExcInfo = &snap.ExcInfo
		}
		writeJSON(w, reqID, http.StatusOK, body)
		return
	}

	job, err := s.repo.GetJob(r.Context(), jobID)
	if err == store.ErrNotFound {
		writeJSON(w, reqID, http.StatusOK, jobBody{JobID: jobID, Status: "not_found"})
		return
	}
	if err != nil {
		s.log.Error("httpapi: get job failed", "job_id", jobID, "error", err)
		writeProblem(w, reqID, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read job", "", nil)
		return
	}

	body := jobBody{JobID: job.JobID, Status: string(job.Status)}
	if !job.CreatedAt.IsZero() {
		ts := job.CreatedAt.Unix()
		body.EnqueuedAt = &ts
	}
	if job.CompletedAt != nil {
		ts := job.CompletedAt.Unix()
		body.EndedAt = &ts
	}
	if len(job.Result) > 0 {
		body.Result = json.RawMessage(job.Result)
	}
	body.ExcInfo = job.Error
	writeJSON(w, reqID, http.StatusOK, body)
}
