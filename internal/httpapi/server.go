// Package httpapi is the HTTP surface of the subtitle service: an
// http.ServeMux-based router in the teacher's Server+RegisterRoutes idiom,
// wrapping the orchestrator, queue, repository, rate limiter, and admin
// auth gate behind the routes in the external interface table.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/7and1/subtitleapi/internal/auth"
	"github.com/7and1/subtitleapi/internal/memcache"
	"github.com/7and1/subtitleapi/internal/orchestrator"
	"github.com/7and1/subtitleapi/internal/queue"
	"github.com/7and1/subtitleapi/internal/ratelimit"
	"github.com/7and1/subtitleapi/internal/rediscache"
	"github.com/7and1/subtitleapi/internal/store"
	"github.com/7and1/subtitleapi/internal/webhook"
	"github.com/7and1/subtitleapi/pkg/telemetry"
)

// Server holds every shared dependency the HTTP handlers need.
type Server struct {
	orch    *orchestrator.Orchestrator
	repo    *store.Repository
	q       *queue.Queue
	limiter *ratelimit.Limiter
	gate    auth.Gate
	webhook *webhook.Notifier
	tier1   *memcache.Cache
	tier2   *rediscache.Cache
	rdb     *goredis.Client
	db      *sql.DB
	log     *slog.Logger
	port    string
	version string

	apiVersion string
}

// Config bundles a Server's constructor arguments.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Repo         *store.Repository
	Queue        *queue.Queue
	Limiter      *ratelimit.Limiter
	Gate         auth.Gate
	Webhook      *webhook.Notifier
	Tier1        *memcache.Cache
	Tier2        *rediscache.Cache
	Redis        *goredis.Client
	DB           *sql.DB
	Log          *slog.Logger
	Port         string
	Version      string
}

// NewServer builds a Server from cfg.
func NewServer(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		orch:       cfg.Orchestrator,
		repo:       cfg.Repo,
		q:          cfg.Queue,
		limiter:    cfg.Limiter,
		gate:       cfg.Gate,
		webhook:    cfg.Webhook,
		tier1:      cfg.Tier1,
		tier2:      cfg.Tier2,
		rdb:        cfg.Redis,
		db:         cfg.DB,
		log:        log,
		port:       port,
		version:    version,
		apiVersion: "v1",
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled, at which
// point it shuts down gracefully with a 15s grace period.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + s.port,
		Handler:      telemetry.PanicRecoveryMiddleware(s.version)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("httpapi: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.log.Info("httpapi: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
