package tracking

import (
	"github.com/smallbiznis/utilitybilling/internal/tracking/repository"
	"github.com/smallbiznis/utilitybilling/internal/tracking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tracking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
