// Package ratelimit implements the atomic token-bucket limiter: one bucket
// per (client, endpoint), capacity = requests-per-minute + burst, refilled
// continuously and persisted with a 61s idle TTL. The check-refill-persist
// cycle runs as a single script against the backing store so concurrent
// requests against the same bucket never race each other.
//
// On store failure the limiter fails closed (denies, remaining=0) unless
// the caller explicitly constructs it with FailOpen: true.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store is the atomic backend a Limiter runs its bucket script against.
// In production this is a RedisStore; tests may supply an in-memory
// implementation that simulates the same script semantics.
type Store interface {
	// EvalBucket atomically applies the token-bucket algorithm to key and
	// returns the resulting (allowed, tokensRemaining).
	EvalBucket(ctx context.Context, key string, capacity, refillPerSecond, cost float64, ttl time.Duration) (allowed bool, remaining float64, err error)
	// Reset clears a bucket's persisted state, restoring it to full capacity
	// on next use.
	Reset(ctx context.Context, key string) error
}

// Result is the outcome of a single rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Config configures a Limiter's bucket shape and failure posture.
type Config struct {
	RequestsPerMinute int
	BurstSize         int
	FailOpen          bool
}

// Limiter enforces a per-(client,endpoint) token bucket against a Store.
type Limiter struct {
	store    Store
	rpm      int
	burst    int
	failOpen bool

	log           *slog.Logger
	mu            sync.Mutex
	lastErrLogged time.Time
}

// New creates a Limiter backed by store with the given bucket configuration.
func New(store Store, cfg Config, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{store: store, rpm: cfg.RequestsPerMinute, burst: cfg.BurstSize, failOpen: cfg.FailOpen, log: log}
}

// Check consumes one token (cost=1) from the bucket identified by key.
func (l *Limiter) Check(ctx context.Context, key string) Result {
	return l.CheckN(ctx, key, 1)
}

// CheckN consumes cost tokens from the bucket identified by key.
func (l *Limiter) CheckN(ctx context.Context, key string, cost float64) Result {
	capacity := float64(l.rpm + l.burst)
	refillPerSecond := float64(l.rpm) / 60.0

	allowed, remaining, err := l.store.EvalBucket(ctx, key, capacity, refillPerSecond, cost, 61*time.Second)
	if err != nil {
		l.logConnErrorThrottled(err)
		if l.failOpen {
			return Result{Allowed: true, Remaining: l.rpm, Limit: l.rpm, ResetAt: time.Now().Add(time.Minute)}
		}
		return Result{Allowed: false, Remaining: 0, Limit: l.rpm, ResetAt: time.Now().Add(time.Minute)}
	}

	return Result{
		Allowed:   allowed,
		Remaining: int(remaining),
		Limit:     l.rpm,
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// logConnErrorThrottled logs store connection errors at most once per
// minute to avoid flooding logs when the store is down.
func (l *Limiter) logConnErrorThrottled(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastErrLogged) < 60*time.Second {
		return
	}
	l.lastErrLogged = time.Now()
	l.log.Error("ratelimit: store unavailable, failing "+failMode(l.failOpen), "error", err)
}

func failMode(failOpen bool) string {
	if failOpen {
		return "open"
	}
	return "closed"
}

// Policy renders the X-RateLimit-Policy header value for this limiter.
func (l *Limiter) Policy() string {
	return fmt.Sprintf("%d;w=60;burst=%d", l.rpm, l.burst)
}

// Peek reports a bucket's current remaining tokens without consuming any,
// for admin stats endpoints.
func (l *Limiter) Peek(ctx context.Context, key string) Result {
	return l.CheckN(ctx, key, 0)
}

// Reset clears a bucket's state entirely, used by the admin
// rate-limit-reset endpoint.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
