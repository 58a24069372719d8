// Package apiclient is a small typed Go client over the subtitle
// service's admin HTTP endpoints, used by cmd/adminctl and integration
// tests in place of hand-rolled HTTP calls.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client wraps the admin HTTP surface with typed request/response methods.
type Client struct {
	baseURL    string
	apiKey     string
	headerName string
	http       *http.Client
}

// New builds a Client against baseURL (e.g. "http://localhost:8080"),
// authenticating admin calls with apiKey sent under headerName (defaults
// to X-API-Key).
func New(baseURL, apiKey, headerName string) *Client {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		headerName: headerName,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

// CacheClearResult is the response body of a POST /api/v1/admin/cache/clear.
type CacheClearResult struct {
	Status           string `json:"status"`
	DeletedCacheKeys int    `json:"deleted_cache_keys"`
	DeletedDBRecords int64  `json:"deleted_db_records"`
	Timestamp        string `json:"timestamp"`
}

// ClearCache purges the in-process and shared caches, and optionally every
// durable subtitle record when purgeDB is true.
func (c *Client) ClearCache(ctx context.Context, purgeDB bool) (*CacheClearResult, error) {
	q := url.Values{}
	if purgeDB {
		q.Set("purge_db", "true")
	}
	var out CacheClearResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/cache/clear", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearVideoCache purges the cached entries for a single video, optionally
// scoped to one language.
func (c *Client) ClearVideoCache(ctx context.Context, videoID, language string) error {
	q := url.Values{}
	if language != "" {
		q.Set("language", language)
	}
	return c.do(ctx, http.MethodDelete, "/api/v1/admin/cache/clear/"+url.PathEscape(videoID), q, nil)
}

// QueueStats is the response body of GET /api/v1/admin/queue/stats.
type QueueStats struct {
	QueueDepth int64 `json:"queue_depth"`
}

// QueueStats reports the current extraction queue depth.
func (c *Client) QueueStats(ctx context.Context) (*QueueStats, error) {
	var out QueueStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/queue/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RateLimitStats is the response body of GET /api/v1/admin/rate-limit/stats/{ip}.
type RateLimitStats struct {
	IP        string `json:"ip"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetAt   int64  `json:"reset_at"`
	Policy    string `json:"policy"`
}

// RateLimitStats reports the rate-limit bucket state for a client IP.
func (c *Client) RateLimitStats(ctx context.Context, ip string) (*RateLimitStats, error) {
	var out RateLimitStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/rate-limit/stats/"+url.PathEscape(ip), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetRateLimit clears a client IP's rate-limit bucket entirely.
func (c *Client) ResetRateLimit(ctx context.Context, ip string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/admin/rate-limit/reset/"+url.PathEscape(ip), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(c.headerName, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var problem struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&problem)
		return fmt.Errorf("apiclient: %s %s: %d %s: %s", method, path, resp.StatusCode, problem.Error.Code, problem.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
