// Command api serves the subtitle service's HTTP surface: cache reads,
// extraction enqueue, job polling, and admin endpoints.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/7and1/subtitleapi/internal/auth"
	"github.com/7and1/subtitleapi/internal/config"
	"github.com/7and1/subtitleapi/internal/httpapi"
	"github.com/7and1/subtitleapi/internal/logger"
	"github.com/7and1/subtitleapi/internal/memcache"
	"github.com/7and1/subtitleapi/internal/orchestrator"
	"github.com/7and1/subtitleapi/internal/queue"
	"github.com/7and1/subtitleapi/internal/ratelimit"
	"github.com/7and1/subtitleapi/internal/rediscache"
	"github.com/7and1/subtitleapi/internal/store"
	"github.com/7and1/subtitleapi/internal/webhook"
	"github.com/7and1/subtitleapi/pkg/telemetry"
)

const serviceName = "subtitleapi"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := telemetry.InitSentry(cfg.SentryDSN, serviceName, "dev"); err != nil {
			log.Warn("api: sentry init failed", "error", err)
		}
		defer telemetry.Flush()
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBPoolSize)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if cfg.DBAutoCreate {
		if err := store.AutoCreateSchema(pingCtx, db, cfg.DBSchema); err != nil {
			return fmt.Errorf("auto create schema: %w", err)
		}
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	repo := store.New(db, cfg.DBSchema)
	tier1 := memcache.New(10000, 5*time.Minute)
	tier2 := rediscache.New(rdb, log)
	q := queue.New(rdb)
	orch := orchestrator.New(tier1, tier2, repo, q, cfg.RedisResultTTL, log)

	rlStore := ratelimit.NewRedisStore(rdb)
	limiter := ratelimit.New(rlStore, ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitRPM,
		BurstSize:         cfg.RateLimitBurst,
		FailOpen:          cfg.RateLimitFailOpen,
	}, log)

	gate := auth.Gate{JWTSecret: cfg.JWTSecret, APIKey: cfg.APIKey, APIKeyHeaderName: cfg.APIKeyHeaderName}

	var notifier *webhook.Notifier
	if cfg.WebhookSecret != "" {
		notifier = webhook.New(webhook.Config{
			Secret:     cfg.WebhookSecret,
			MaxRetries: cfg.WebhookMaxRetries,
			Timeout:    cfg.WebhookTimeout,
		})
	}

	srv := httpapi.NewServer(httpapi.Config{
		Orchestrator: orch,
		Repo:         repo,
		Queue:        q,
		Limiter:      limiter,
		Gate:         gate,
		Webhook:      notifier,
		Tier1:        tier1,
		Tier2:        tier2,
		Redis:        rdb,
		DB:           db,
		Log:          log,
		Port:         cfg.Port,
		Version:      serviceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
