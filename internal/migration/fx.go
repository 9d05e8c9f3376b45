package migration

import (
	commissiondomain "github.com/affcd/gateway/internal/commission/domain"
	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"github.com/affcd/gateway/internal/ratelimit"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	usagedomain "github.com/affcd/gateway/internal/usageevent/domain"
	vanitydomain "github.com/affcd/gateway/internal/vanitycode/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations target postgres. Other dialects
		// (sqlite for local development, mysql) take the schema from
		// the models directly.
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		return conn.AutoMigrate(
			&credentialdomain.AuthorizedDomain{},
			&vanitydomain.VanityCode{},
			&usagedomain.UsageEvent{},
			&ratelimit.RateLimitWindow{},
			&securitydomain.SecurityLogEntry{},
			&commissiondomain.CommissionRule{},
			&commissiondomain.CommissionTier{},
		)
	}),
)
