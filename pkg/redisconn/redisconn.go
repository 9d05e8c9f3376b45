package redisconn

import (
	"github.com/affcd/gateway/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// New builds the shared redis client, or nil when redis is not configured.
// Consumers must tolerate a nil client and fall back to their local path.
func New(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Module provides the optional shared redis client.
var Module = fx.Module("redis",
	fx.Provide(New),
)
