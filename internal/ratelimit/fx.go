package ratelimit

import (
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Provide picks the redis limiter when a client is configured, otherwise the
// database-backed window store.
func Provide(client *redis.Client, conn *gorm.DB, genID *snowflake.Node) Limiter {
	if client != nil {
		return NewRedisLimiter(client)
	}
	return NewStoreLimiter(conn, genID)
}

var Module = fx.Module("rate.limit",
	fx.Provide(Provide),
)
