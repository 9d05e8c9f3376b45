package cache

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Provide picks the redis cache when a client is configured, otherwise the
// in-process TTL cache.
func Provide(client *redis.Client) Cache {
	if client != nil {
		return NewRedisCache(client, "affcd:cache:")
	}
	return NewMemoryCache()
}

var Module = fx.Module("cache",
	fx.Provide(Provide),
)
