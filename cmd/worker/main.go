// Command worker runs the extraction job pipeline: it claims jobs off the
// shared queue, runs the dual-engine extractor, persists the result, and
// fires the webhook notifier.
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

	"github.com/7and1/subtitleapi/internal/config"
	"github.com/7and1/subtitleapi/internal/extractor"
	"github.com/7and1/subtitleapi/internal/logger"
	"github.com/7and1/subtitleapi/internal/proxypool"
	"github.com/7and1/subtitleapi/internal/queue"
	"github.com/7and1/subtitleapi/internal/rediscache"
	"github.com/7and1/subtitleapi/internal/retry"
	"github.com/7and1/subtitleapi/internal/store"
	"github.com/7and1/subtitleapi/internal/webhook"
	"github.com/7and1/subtitleapi/internal/worker"
	"github.com/7and1/subtitleapi/pkg/telemetry"
)

const serviceName = "subtitleapi-worker"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
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
			log.Warn("worker: sentry init failed", "error", err)
		}
		defer telemetry.Flush()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.WorkerDBPoolSize)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
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
	tier2 := rediscache.New(rdb, log)
	q := queue.New(rdb)

	proxySource := proxypool.NewEnvSource(cfg.ProxyURLs, cfg.ProxyAuth)
	proxies := proxypool.New(proxySource, tier2, cfg.ProxyCooldownSeconds, cfg.ProxyMaxFailures)

	var notifier *webhook.Notifier
	if cfg.WebhookSecret != "" {
		notifier = webhook.New(webhook.Config{
			Secret:     cfg.WebhookSecret,
			MaxRetries: cfg.WebhookMaxRetries,
			Timeout:    cfg.WebhookTimeout,
		})
	}

	pool := &worker.Pool{
		Concurrency: cfg.WorkerConcurrency,
		Queue:       q,
		Repo:        repo,
		Tier2:       tier2,
		ResultTTL:   cfg.RedisResultTTL,
		Proxies:     proxies,
		Primary:     extractor.NewPrimaryEngine(),
		Fallback:    extractor.NewFallbackEngine(),
		Notifier:    notifier,
		Timeout:     cfg.ExtractionTimeout,
		MaxAttempts: cfg.RetryMaxAttempts,
		Backoff:     retry.ExponentialBackoff(time.Second, 30*time.Second, cfg.RetryBackoffFactor),
		Log:         log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker: starting", "concurrency", cfg.WorkerConcurrency)
	pool.Run(ctx)
	log.Info("worker: drained, exiting")
	return nil
}
