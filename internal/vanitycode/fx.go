package vanitycode

import (
	"github.com/affcd/gateway/internal/vanitycode/repository"
	"github.com/affcd/gateway/internal/vanitycode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vanitycode.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
