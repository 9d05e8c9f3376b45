package credential

import (
	"github.com/affcd/gateway/internal/credential/repository"
	"github.com/affcd/gateway/internal/credential/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credential.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
