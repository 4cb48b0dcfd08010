package dunning

import (
	"github.com/smallbiznis/utilitybilling/internal/dunning/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dunning.service",
	fx.Provide(service.New),
)
