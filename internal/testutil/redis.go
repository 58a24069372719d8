package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAddr returns the Redis address for tests.
func RedisAddr() string {
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6380"
}

// OpenRedis opens a Redis connection using the test address and clears
// database 15 (the dedicated test database) so each test run starts clean.
func OpenRedis(t *testing.T) (*redis.Client, error) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: RedisAddr(), DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("flush test db: %w", err)
	}
	return rdb, nil
}

// MustOpenRedis opens a Redis connection and skips the test if it cannot.
func MustOpenRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb, err := OpenRedis(t)
	if err != nil {
		t.Skipf("testutil: skipping integration test (no Redis): %v", err)
	}
	return rdb
}
