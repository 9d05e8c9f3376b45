package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// fixedWindowScript checks the counter before incrementing so a denied
// request never advances the count past the limit.
const fixedWindowScript = `
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= limit then
  return {0, count}
end

count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return {1, count}
`

type redisLimiter struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisLimiter returns a limiter backed by redis fixed-window counters.
func NewRedisLimiter(client *redis.Client) Limiter {
	return &redisLimiter{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

func (l *redisLimiter) Allow(ctx context.Context, identifier, action string, limit int, window time.Duration) (Result, error) {
	now := time.Now()
	start := windowStart(now, window)
	resetAt := start.Add(window)

	key := fmt.Sprintf("affcd:rl:%s:%s:%d", identifier, action, start.Unix())
	ttl := time.Until(resetAt) + time.Second

	res, err := l.script.Run(ctx, l.client, []string{key}, limit, ttl.Milliseconds()).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 2 {
		return Result{}, fmt.Errorf("unexpected rate limit script response")
	}

	allowed := toInt64(res[0]) == 1
	count := int(toInt64(res[1]))
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	default:
		return 0
	}
}
