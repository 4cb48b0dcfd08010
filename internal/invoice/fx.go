package invoice

import (
	"github.com/smallbiznis/utilitybilling/internal/invoice/builder"
	"github.com/smallbiznis/utilitybilling/internal/invoice/render"
	"github.com/smallbiznis/utilitybilling/internal/invoice/repository"
	"github.com/smallbiznis/utilitybilling/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(builder.New),
	fx.Provide(render.New),
	fx.Provide(service.New),
)
