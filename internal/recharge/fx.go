package recharge

import "go.uber.org/fx"

var Module = fx.Module("recharge.service",
	fx.Provide(New),
)
