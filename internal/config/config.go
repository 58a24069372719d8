// Package config loads the service's environment-driven configuration into
// a single typed Config, validating required fields at startup rather than
// letting a missing variable surface as a confusing failure downstream.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var schemaIdentRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds every environment-driven setting for both the API and worker
// processes. Not all fields apply to both; cmd/api and cmd/worker each read
// the subset they need.
type Config struct {
	// Database
	DatabaseURL    string
	DBSchema       string
	DBPoolSize     int
	DBAutoCreate   bool

	// Redis / queue
	RedisURL       string
	RedisQueueName string
	RedisResultTTL time.Duration

	// Extraction
	ExtractionTimeout    time.Duration
	RetryMaxAttempts     int
	RetryBackoffFactor   float64
	ProxyURLs            []string
	ProxyAuth            string
	ProxyCooldownSeconds int
	ProxyMaxFailures     int

	// Rate limiting
	RateLimitRPM      int
	RateLimitBurst    int
	RateLimitFailOpen bool

	// Auth
	APIKey           string
	APIKeyHeaderName string
	JWTSecret        string
	AllowedOrigins   []string

	// Worker
	WorkerConcurrency int
	WorkerDBPoolSize  int

	// Webhook
	WebhookSecret     string
	WebhookTimeout    time.Duration
	WebhookMaxRetries int

	// Ambient
	LogLevel       string
	LogFormat      string
	SentryDSN      string
	MetricsEnabled bool
	Port           string
}

// Load reads the process environment into a Config, applying defaults and
// validating required fields. Returns a descriptive error on the first
// validation failure.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DBSchema:             getenv("DB_SCHEMA", "public"),
		DBPoolSize:           getenvInt("DB_POOL_SIZE", 10),
		DBAutoCreate:         getenvBool("DB_AUTO_CREATE", false),
		RedisURL:             os.Getenv("REDIS_URL"),
		RedisQueueName:       getenv("REDIS_QUEUE_NAME", "subtitle_extraction"),
		RedisResultTTL:       getenvSeconds("REDIS_RESULT_TTL", 86400),
		ExtractionTimeout:    getenvSeconds("YT_EXTRACTION_TIMEOUT", 30),
		RetryMaxAttempts:     getenvInt("YT_RETRY_MAX_ATTEMPTS", 3),
		RetryBackoffFactor:   getenvFloat("YT_RETRY_BACKOFF_FACTOR", 2.0),
		ProxyURLs:            getenvCSV("YT_PROXY_URLS"),
		ProxyAuth:            os.Getenv("YT_PROXY_AUTH"),
		ProxyCooldownSeconds: getenvInt("PROXY_COOLDOWN_SECONDS", 60),
		ProxyMaxFailures:     getenvInt("PROXY_MAX_FAILURES", 3),
		RateLimitRPM:         getenvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
		RateLimitBurst:       getenvInt("RATE_LIMIT_BURST_SIZE", 10),
		RateLimitFailOpen:    getenvBool("RATE_LIMIT_FAIL_OPEN", false),
		APIKey:               os.Getenv("API_KEY"),
		APIKeyHeaderName:     getenv("API_KEY_HEADER_NAME", "X-API-Key"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		AllowedOrigins:       getenvCSV("ALLOWED_ORIGINS"),
		WorkerConcurrency:    getenvInt("WORKER_CONCURRENCY", 4),
		WorkerDBPoolSize:     getenvInt("WORKER_DB_POOL_SIZE", 5),
		WebhookSecret:        os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:       getenvSeconds("WEBHOOK_TIMEOUT", 10),
		WebhookMaxRetries:    getenvInt("WEBHOOK_MAX_RETRIES", 3),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "json"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		MetricsEnabled:       getenvBool("METRICS_ENABLED", true),
		Port:                 getenv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if !schemaIdentRE.MatchString(cfg.DBSchema) {
		return nil, fmt.Errorf("config: DB_SCHEMA %q is not a valid identifier", cfg.DBSchema)
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("config: REDIS_URL is required")
	}

	return cfg, nil
}

// AdminAuthConfigured reports whether at least one admin authentication
// mechanism is usable. The authentication gate fails closed when false.
func (c *Config) AdminAuthConfigured() bool {
	return c.JWTSecret != "" || c.APIKey != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getenvInt(key, fallbackSeconds)) * time.Second
}

func getenvCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
