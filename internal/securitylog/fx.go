package securitylog

import (
	"github.com/affcd/gateway/internal/securitylog/alert"
	"github.com/affcd/gateway/internal/securitylog/repository"
	"github.com/affcd/gateway/internal/securitylog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("securitylog.service",
	fx.Provide(repository.Provide),
	fx.Provide(alert.NewLogAlerter),
	fx.Provide(service.NewService),
)
