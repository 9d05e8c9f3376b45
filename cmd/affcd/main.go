package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/affcd/gateway/internal/addons"
	"github.com/affcd/gateway/internal/cache"
	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/commission"
	"github.com/affcd/gateway/internal/config"
	"github.com/affcd/gateway/internal/configsync"
	"github.com/affcd/gateway/internal/credential"
	"github.com/affcd/gateway/internal/domainauth"
	"github.com/affcd/gateway/internal/logger"
	"github.com/affcd/gateway/internal/metrics"
	"github.com/affcd/gateway/internal/migration"
	"github.com/affcd/gateway/internal/ratelimit"
	"github.com/affcd/gateway/internal/scheduler"
	"github.com/affcd/gateway/internal/securitylog"
	"github.com/affcd/gateway/internal/server"
	"github.com/affcd/gateway/internal/usageevent"
	"github.com/affcd/gateway/internal/vanitycode"
	"github.com/affcd/gateway/internal/webhook"
	"github.com/affcd/gateway/pkg/db"
	"github.com/affcd/gateway/pkg/redisconn"
)

func main() {
	app := fx.New(
		// Infrastructure.
		config.Module,
		logger.Module,
		clock.Module,
		metrics.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		redisconn.Module,
		cache.Module,
		migration.Module,

		// Domain services.
		credential.Module,
		securitylog.Module,
		ratelimit.Module,
		vanitycode.Module,
		commission.Module,
		usageevent.Module,
		webhook.Module,
		domainauth.Module,
		addons.Module,
		configsync.Module,

		// Background jobs and the HTTP surface.
		scheduler.Module,
		server.Module,
	)

	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("NODE_ID"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed >= 0 {
			nodeID = parsed % 1024
		}
	}
	return snowflake.NewNode(nodeID)
}
