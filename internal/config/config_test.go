package config

import (
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads, so each test starts from a
// clean slate regardless of test execution order or the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL", "DB_SCHEMA", "DB_POOL_SIZE", "DB_AUTO_CREATE",
		"REDIS_URL", "REDIS_QUEUE_NAME", "REDIS_RESULT_TTL",
		"YT_EXTRACTION_TIMEOUT", "YT_RETRY_MAX_ATTEMPTS", "YT_RETRY_BACKOFF_FACTOR",
		"YT_PROXY_URLS", "YT_PROXY_AUTH", "PROXY_COOLDOWN_SECONDS", "PROXY_MAX_FAILURES",
		"RATE_LIMIT_REQUESTS_PER_MINUTE", "RATE_LIMIT_BURST_SIZE", "RATE_LIMIT_FAIL_OPEN",
		"API_KEY", "API_KEY_HEADER_NAME", "JWT_SECRET", "ALLOWED_ORIGINS",
		"WORKER_CONCURRENCY", "WORKER_DB_POOL_SIZE",
		"WEBHOOK_SECRET", "WEBHOOK_TIMEOUT", "WEBHOOK_MAX_RETRIES",
		"LOG_LEVEL", "LOG_FORMAT", "SENTRY_DSN", "METRICS_ENABLED", "PORT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is unset")
	}
}

func TestLoadRequiresRedisURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	if _, err := Load(); err == nil {
		t.Error("expected error when REDIS_URL is unset")
	}
}

func TestLoadRejectsInvalidSchemaIdentifier(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("DB_SCHEMA", "bad; drop table users;--")
	if _, err := Load(); err == nil {
		t.Error("expected error for an unsafe schema identifier")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBSchema != "public" {
		t.Errorf("DBSchema = %q, want public", cfg.DBSchema)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d, want 4", cfg.WorkerConcurrency)
	}
	if cfg.ExtractionTimeout != 30*time.Second {
		t.Errorf("ExtractionTimeout = %v, want 30s", cfg.ExtractionTimeout)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.MetricsEnabled {
		t.Error("expected MetricsEnabled to default true")
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("WORKER_CONCURRENCY", "16")
	t.Setenv("YT_PROXY_URLS", "http://a.internal, http://b.internal ,,http://c.internal")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkerConcurrency != 16 {
		t.Errorf("WorkerConcurrency = %d, want 16", cfg.WorkerConcurrency)
	}
	want := []string{"http://a.internal", "http://b.internal", "http://c.internal"}
	if len(cfg.ProxyURLs) != len(want) {
		t.Fatalf("ProxyURLs = %v, want %v", cfg.ProxyURLs, want)
	}
	for i, v := range want {
		if cfg.ProxyURLs[i] != v {
			t.Errorf("ProxyURLs[%d] = %q, want %q", i, cfg.ProxyURLs[i], v)
		}
	}
	if !cfg.RateLimitFailOpen {
		t.Error("expected RateLimitFailOpen to be true")
	}
}

func TestLoadIgnoresUnparsableIntFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d, want fallback 4", cfg.WorkerConcurrency)
	}
}

func TestAdminAuthConfigured(t *testing.T) {
	cfg := &Config{}
	if cfg.AdminAuthConfigured() {
		t.Error("expected false with neither APIKey nor JWTSecret set")
	}
	cfg.APIKey = "x"
	if !cfg.AdminAuthConfigured() {
		t.Error("expected true with APIKey set")
	}
}
