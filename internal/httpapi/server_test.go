package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/7and1/subtitleapi/internal/auth"
	"github.com/7and1/subtitleapi/internal/httpapi"
	"github.com/7and1/subtitleapi/internal/memcache"
	"github.com/7and1/subtitleapi/internal/orchestrator"
	"github.com/7and1/subtitleapi/internal/queue"
	"github.com/7and1/subtitleapi/internal/ratelimit"
	"github.com/7and1/subtitleapi/internal/rediscache"
	"github.com/7and1/subtitleapi/internal/store"
	"github.com/7and1/subtitleapi/internal/testutil"
)

func newTestServer(t *testing.T, apiKey string) (*http.ServeMux, *store.Repository, *queue.Queue) {
	t.Helper()
	db := testutil.MustOpenDB(t)
	rdb := testutil.MustOpenRedis(t)
	t.Cleanup(func() { db.Close(); rdb.Close() })

	tier1 := memcache.New(1000, time.Minute)
	tier2 := rediscache.New(rdb, nil)
	repo := store.New(db, testutil.Schema)
	q := queue.New(rdb)
	orch := orchestrator.New(tier1, tier2, repo, q, time.Hour, nil)
	limiter := ratelimit.New(ratelimit.NewRedisStore(rdb), ratelimit.Config{RequestsPerMinute: 60, BurstSize: 10}, nil)

	srv := httpapi.NewServer(httpapi.Config{
		Orchestrator: orch,
		Repo:         repo,
		Queue:        q,
		Limiter:      limiter,
		Gate:         auth.Gate{APIKey: apiKey},
		Tier1:        tier1,
		Tier2:        tier2,
		Redis:        rdb,
		DB:           db,
		Version:      "test",
	})

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return mux, repo, q
}

func doRequest(mux *http.ServeMux, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsOK(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestLiveAndStatus(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	if rec := doRequest(mux, http.MethodGet, "/live", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("/live status = %d, want 200", rec.Code)
	}
	rec := doRequest(mux, http.MethodGet, "/status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/status = %d, want 200", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["service"] != "subtitleapi" {
		t.Errorf("service = %v, want subtitleapi", body["service"])
	}
}

func TestCreateSubtitleMissRequiresVideoID(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodPost, "/api/v1/subtitles", map[string]any{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSubtitleEnqueuesOnMiss(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodPost, "/api/v1/subtitles", map[string]any{
		"video_id": "tsthttp001",
		"language": "en",
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "queued" {
		t.Errorf("status = %v, want queued", body["status"])
	}
	if body["job_id"] == "" || body["job_id"] == nil {
		t.Error("expected a non-empty job_id")
	}
}

func TestCreateSubtitleHitReturnsCachedBody(t *testing.T) {
	mux, repo, _ := newTestServer(t, "")
	videoID := "tsthttp002"
	if _, err := repo.UpsertSubtitle(context.Background(), store.VideoKey{VideoID: videoID, Language: "en"}, store.SubtitleRecord{
		PlainText:        "hello from the api",
		ExtractionStatus: store.ExtractionSuccess,
	}); err != nil {
		t.Fatalf("UpsertSubtitle: %v", err)
	}

	rec := doRequest(mux, http.MethodPost, "/api/v1/subtitles", map[string]any{
		"video_id": videoID,
		"language": "en",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["plain_text"] != "hello from the api" {
		t.Errorf("plain_text = %v, want cached text", body["plain_text"])
	}
	if body["cached"] != true {
		t.Error("expected cached=true")
	}
}

func TestGetSubtitleNotFound(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodGet, "/api/v1/subtitles/tsthttp999", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestGetSubtitleInvalidVideoID(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodGet, "/api/v1/subtitles/not valid!!", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGetJobUnknownReturnsNotFoundStatusBody(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodGet, "/api/v1/job/does-not-exist", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (job polling never 404s)", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "not_found" {
		t.Errorf("status = %v, want not_found", body["status"])
	}
}

func TestGetJobReportsQueueStatusOverDurableStatus(t *testing.T) {
	mux, repo, q := newTestServer(t, "")
	videoID := "tsthttp007"

	jobID, err := q.Enqueue(context.Background(), videoID, "en", false, "", time.Now().Unix())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := repo.CreateJob(context.Background(), store.VideoKey{VideoID: videoID, Language: "en"}, jobID, nil); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	rec := doRequest(mux, http.MethodGet, "/api/v1/job/"+jobID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "queued" {
		t.Errorf("status = %v, want queued", body["status"])
	}

	q.MarkFinished(context.Background(), jobID, []byte(`{"plain_text":"done"}`), time.Now().Unix())
	if err := repo.UpdateJobStatus(context.Background(), jobID, store.JobCompleted, []byte(`{"plain_text":"done"}`), nil); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	rec = doRequest(mux, http.MethodGet, "/api/v1/job/"+jobID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "finished" {
		t.Errorf("status = %v, want finished (RQ vocabulary, not the durable store's \"completed\")", body["status"])
	}
	result, _ := body["result"].(map[string]any)
	if result["plain_text"] != "done" {
		t.Errorf("result = %v, want the marked result to surface from the queue snapshot", body["result"])
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	mux, _, _ := newTestServer(t, "secret-key")
	rec := doRequest(mux, http.MethodGet, "/api/v1/admin/queue/stats", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without credentials: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminEndpointsAllowValidAPIKey(t *testing.T) {
	mux, _, _ := newTestServer(t, "secret-key")
	rec := doRequest(mux, http.MethodGet, "/api/v1/admin/queue/stats", nil, map[string]string{"X-API-Key": "secret-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminCacheClearPurgesDB(t *testing.T) {
	mux, repo, _ := newTestServer(t, "secret-key")
	videoID := "tsthttp003"
	if _, err := repo.UpsertSubtitle(context.Background(), store.VideoKey{VideoID: videoID, Language: "en"}, store.SubtitleRecord{
		PlainText:        "to be purged",
		ExtractionStatus: store.ExtractionSuccess,
	}); err != nil {
		t.Fatalf("UpsertSubtitle: %v", err)
	}

	rec := doRequest(mux, http.MethodPost, "/api/v1/admin/cache/clear?purge_db=true", nil, map[string]string{"X-API-Key": "secret-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if _, err := repo.FindSubtitle(context.Background(), store.VideoKey{VideoID: videoID, Language: "en"}); err != store.ErrNotFound {
		t.Errorf("FindSubtitle after purge = %v, want ErrNotFound", err)
	}
}

func TestAdminRateLimitStatsAndReset(t *testing.T) {
	mux, _, _ := newTestServer(t, "secret-key")
	headers := map[string]string{"X-API-Key": "secret-key"}

	rec := doRequest(mux, http.MethodGet, "/api/v1/admin/rate-limit/stats/9.9.9.9", nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(mux, http.MethodPost, "/api/v1/admin/rate-limit/reset/9.9.9.9", nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestDeprecatedAPIPathRedirects(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodGet, "/api/status", nil, nil)
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want 308", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/status" {
		t.Errorf("Location = %q, want /api/v1/status", loc)
	}
}

func TestBatchSubtitlesRejectsEmptyList(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodPost, "/api/v1/subtitles/batch", map[string]any{"video_ids": []string{}}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBatchSubtitlesMixesCachedAndQueued(t *testing.T) {
	mux, repo, _ := newTestServer(t, "")
	cachedID := "tsthttp004"
	if _, err := repo.UpsertSubtitle(context.Background(), store.VideoKey{VideoID: cachedID, Language: "en"}, store.SubtitleRecord{
		PlainText:        "cached batch entry",
		ExtractionStatus: store.ExtractionSuccess,
	}); err != nil {
		t.Fatalf("UpsertSubtitle: %v", err)
	}

	rec := doRequest(mux, http.MethodPost, "/api/v1/subtitles/batch", map[string]any{
		"video_ids": []string{cachedID, "tsthttp005"},
		"language":  "en",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if int(body["cached_count"].(float64)) != 1 {
		t.Errorf("cached_count = %v, want 1", body["cached_count"])
	}
	if int(body["queued_count"].(float64)) != 1 {
		t.Errorf("queued_count = %v, want 1", body["queued_count"])
	}
}

func TestRateLimitHeadersPresentOnSubtitleRoute(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodGet, "/api/v1/subtitles/tsthttp006", nil, nil)
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("expected X-RateLimit-Limit header on a rate-limited route")
	}
	if rec.Header().Get("X-RateLimit-Policy") == "" {
		t.Error("expected X-RateLimit-Policy header on a rate-limited route")
	}
}

func TestEveryResponseCarriesRequestID(t *testing.T) {
	mux, _, _ := newTestServer(t, "")
	rec := doRequest(mux, http.MethodGet, "/live", nil, map[string]string{"X-Request-ID": "fixed-id"})
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id (caller-supplied id should be echoed)", got)
	}
}
