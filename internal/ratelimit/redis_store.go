// redis_store.go — go-redis v9 adapter implementing the ratelimit.Store
// interface via a Lua script, so the refill-check-persist cycle runs as a
// single atomic operation against Redis.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// bucketScript implements the token-bucket algorithm atomically:
// KEYS[1] = bucket key
// ARGV[1] = capacity, ARGV[2] = refill per second, ARGV[3] = cost,
// ARGV[4] = now (unix seconds, float), ARGV[5] = ttl seconds
//
// Stored state is "tokens:last_refill_ts" as a single string value.
var bucketScript = goredis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_sec = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = capacity
local last = now

local raw = redis.call("GET", key)
if raw then
	local sep = string.find(raw, ":")
	if sep then
		tokens = tonumber(string.sub(raw, 1, sep - 1))
		last = tonumber(string.sub(raw, sep + 1))
	end
end

local delta = now - last
if delta < 0 then delta = 0 end
tokens = math.min(capacity, tokens + delta * refill_per_sec)

local allowed = 0
if tokens >= cost then
	tokens = tokens - cost
	allowed = 1
end

redis.call("SET", key, tostring(tokens) .. ":" .. tostring(now), "EX", ttl)

return {allowed, tostring(tokens)}
`)

// RedisStore wraps a go-redis client and satisfies the ratelimit.Store
// interface, running the token-bucket algorithm as a single EVAL.
type RedisStore struct {
	c *goredis.Client
}

// NewRedisStore creates a RedisStore from a go-redis Client.
func NewRedisStore(c *goredis.Client) *RedisStore {
	return &RedisStore{c: c}
}

// EvalBucket runs the token-bucket Lua script against key.
func (s *RedisStore) EvalBucket(ctx context.Context, key string, capacity, refillPerSecond, cost float64, ttl time.Duration) (bool, float64, error) {
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := bucketScript.Run(ctx, s.c, []string{key}, capacity, refillPerSecond, cost, now, int(ttl.Seconds())).Result()
	if err != nil {
		return false, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, nil
	}
	allowedRaw, _ := vals[0].(int64)
	remainingStr, _ := vals[1].(string)
	remaining, _ := strconv.ParseFloat(remainingStr, 64)
	return allowedRaw == 1, remaining, nil
}

// Reset deletes a bucket's persisted state.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.c.Del(ctx, key).Err()
}
