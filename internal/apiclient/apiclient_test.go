package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClearCacheSendsPurgeDBQuery(t *testing.T) {
	var gotQuery string
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-API-Key")
		json.NewEncoder(w).Encode(CacheClearResult{Status: "ok", DeletedCacheKeys: 3})
	}))
	defer server.Close()

	c := New(server.URL, "secret", "")
	out, err := c.ClearCache(context.Background(), true)
	if err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if gotQuery != "purge_db=true" {
		t.Errorf("query = %q, want purge_db=true", gotQuery)
	}
	if gotHeader != "secret" {
		t.Errorf("X-API-Key header = %q, want secret", gotHeader)
	}
	if out.DeletedCacheKeys != 3 {
		t.Errorf("DeletedCacheKeys = %d, want 3", out.DeletedCacheKeys)
	}
}

func TestClearCacheOmitsQueryWhenNotPurging(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(CacheClearResult{Status: "ok"})
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	if _, err := c.ClearCache(context.Background(), false); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if gotQuery != "" {
		t.Errorf("query = %q, want empty", gotQuery)
	}
}

func TestNewUsesCustomHeaderName(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, "tok", "Authorization")
	if err := c.ResetRateLimit(context.Background(), "1.2.3.4"); err != nil {
		t.Fatalf("ResetRateLimit: %v", err)
	}
	if gotHeader != "tok" {
		t.Errorf("Authorization header = %q, want tok", gotHeader)
	}
}

func TestClearVideoCacheEscapesPathAndSetsLanguage(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	if err := c.ClearVideoCache(context.Background(), "abc 123", "en"); err != nil {
		t.Fatalf("ClearVideoCache: %v", err)
	}
	if gotPath != "/api/v1/admin/cache/clear/abc 123" && gotPath != "/api/v1/admin/cache/clear/abc%20123" {
		t.Errorf("Path = %q", gotPath)
	}
	if gotQuery != "language=en" {
		t.Errorf("query = %q, want language=en", gotQuery)
	}
}

func TestQueueStatsDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(QueueStats{QueueDepth: 42})
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	out, err := c.QueueStats(context.Background())
	if err != nil {
		t.Fatalf("QueueStats: %v", err)
	}
	if out.QueueDepth != 42 {
		t.Errorf("QueueDepth = %d, want 42", out.QueueDepth)
	}
}

func TestRateLimitStatsDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RateLimitStats{IP: "1.2.3.4", Limit: 60, Remaining: 59, Policy: "60;w=60;burst=10"})
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	out, err := c.RateLimitStats(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("RateLimitStats: %v", err)
	}
	if out.Remaining != 59 || out.Policy != "60;w=60;burst=10" {
		t.Errorf("RateLimitStats = %+v, unexpected", out)
	}
}

func TestDoReturnsErrorOnNonOKStatusWithProblemBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "rate_limited", "message": "slow down"},
		})
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	_, err := c.QueueStats(context.Background())
	if err == nil {
		t.Fatal("expected an error on a 429 response")
	}
}

func TestDoReturnsErrorOnTransportFailure(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	if _, err := c.QueueStats(context.Background()); err == nil {
		t.Error("expected an error connecting to an unreachable host")
	}
}
