package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/config"
	"github.com/smallbiznis/utilitybilling/internal/invoice"
	"github.com/smallbiznis/utilitybilling/internal/observability"
	"github.com/smallbiznis/utilitybilling/internal/pricing"
	"github.com/smallbiznis/utilitybilling/internal/scheduler"
	"github.com/smallbiznis/utilitybilling/internal/tracking"
	"github.com/smallbiznis/utilitybilling/pkg/db"
	"github.com/smallbiznis/utilitybilling/pkg/redisclient"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisclient.Module,
		clock.Module,

		// Domain services required by the sweep
		pricing.Module,
		tracking.Module,
		invoice.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
