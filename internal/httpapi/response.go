package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/7and1/subtitleapi/internal/ratelimit"
)

const apiVersionHeader = "v1"

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id"`
	Meta      any    `json:"meta,omitempty"`
	Timestamp string `json:"timestamp"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// requestID returns the caller-supplied X-Request-ID or mints a fresh one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// writeStandardHeaders sets the headers every response carries.
func writeStandardHeaders(w http.ResponseWriter, reqID string) {
	w.Header().Set("X-Request-ID", reqID)
	w.Header().Set("X-API-Version", apiVersionHeader)
}

func writeRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result, policy string) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	w.Header().Set("X-RateLimit-Policy", policy)
}

func writeJSON(w http.ResponseWriter, reqID string, status int, body any) {
	writeStandardHeaders(w, reqID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeProblem(w http.ResponseWriter, reqID string, status int, code, message, hint string, meta any) {
	writeStandardHeaders(w, reqID)
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	body := errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		Hint:      hint,
		RequestID: reqID,
		Meta:      meta,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}
	_ = json.NewEncoder(w).Encode(body)
}
