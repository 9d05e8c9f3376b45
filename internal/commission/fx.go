package commission

import (
	"github.com/affcd/gateway/internal/commission/repository"
	"github.com/affcd/gateway/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
