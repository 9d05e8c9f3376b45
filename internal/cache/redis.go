package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns a redis-backed cache. The prefix namespaces keys so
// several gateway instances can share one redis database.
func NewRedisCache(client *redis.Client, prefix string) Cache {
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, key string) {
	_ = c.client.Del(ctx, c.prefix+key).Err()
}
