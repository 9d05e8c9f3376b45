package usageevent

import (
	"github.com/affcd/gateway/internal/usageevent/repository"
	"github.com/affcd/gateway/internal/usageevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usageevent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
