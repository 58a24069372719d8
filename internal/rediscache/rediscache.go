// Package rediscache wraps a go-redis client as the Tier-2 shared cache:
// single-get, batch-get, set-with-TTL, incremental pattern delete, atomic
// set-if-absent (used as a distributed lock primitive), and counters.
//
// Every method swallows transport and decode errors into a miss/no-op and
// logs them — callers degrade to Tier-3 rather than fail the request. This
// mirrors the original service's "Redis down shouldn't take down reads"
// posture.
package rediscache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 500

// Cache wraps a *redis.Client to implement the Tier-2 contract.
type Cache struct {
	rdb *redis.Client
	log *slog.Logger
}

// New creates a Cache backed by rdb. log may be nil, in which case
// slog.Default() is used.
func New(rdb *redis.Client, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{rdb: rdb, log: log}
}

// Client exposes the underlying go-redis client for components (the rate
// limiter's Lua script, the job queue) that need lower-level Redis access.
func (c *Cache) Client() *redis.Client {
	return c.rdb
}

// Get returns the value for key. Transport errors and misses both result
// in ok=false; transport errors are additionally logged.
func (c *Cache) Get(ctx context.Context, key string) (value string, ok bool) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("rediscache: get failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

// GetMany performs a single MGET round trip. Keys absent or expired are
// omitted from the result map.
func (c *Cache) GetMany(ctx context.Context, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("rediscache: mget failed", "error", err)
		return out
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out
}

// Set stores value under key with the given TTL. Best-effort: errors are
// logged, never returned, matching the Tier-2 contract's "swallow, don't
// fail the request" posture.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("rediscache: set failed", "key", key, "error", err)
	}
}

// Delete removes key and reports whether it existed.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		c.log.Warn("rediscache: delete failed", "key", key, "error", err)
		return false
	}
	return n > 0
}

// DeletePattern removes every key matching glob using incremental SCAN
// (never the blocking KEYS command), deleting in batches as they're found.
// Returns the number of keys deleted.
func (c *Cache) DeletePattern(ctx context.Context, glob string) int {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, glob, scanBatchSize).Result()
		if err != nil {
			c.log.Warn("rediscache: scan failed", "pattern", glob, "error", err)
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				c.log.Warn("rediscache: batch delete failed", "pattern", glob, "error", err)
			} else {
				deleted += int(n)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted
}

// Incr atomically increments key and returns the new value.
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// SetIfAbsent atomically sets key to value with TTL only if key does not
// already exist ("SET key value NX EX ttl"). Used as a lock primitive.
func (c *Cache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) bool {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		c.log.Warn("rediscache: setnx failed", "key", key, "error", err)
		return false
	}
	return ok
}

// AcquireLock is SetIfAbsent under the name used by the orchestrator.
func (c *Cache) AcquireLock(ctx context.Context, key string, ttl time.Duration) bool {
	return c.SetIfAbsent(ctx, key, "1", ttl)
}

// ReleaseLock is Delete under the name used by the orchestrator.
func (c *Cache) ReleaseLock(ctx context.Context, key string) {
	c.Delete(ctx, key)
}
