package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/config"
	"github.com/smallbiznis/utilitybilling/internal/dunning"
	"github.com/smallbiznis/utilitybilling/internal/invoice"
	"github.com/smallbiznis/utilitybilling/internal/migration"
	"github.com/smallbiznis/utilitybilling/internal/observability"
	"github.com/smallbiznis/utilitybilling/internal/pricing"
	"github.com/smallbiznis/utilitybilling/internal/ratelimit"
	"github.com/smallbiznis/utilitybilling/internal/recharge"
	"github.com/smallbiznis/utilitybilling/internal/server"
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
		migration.Module,
		clock.Module,

		pricing.Module,
		tracking.Module,
		invoice.Module,
		dunning.Module,
		recharge.Module,

		ratelimit.Module,
		server.Module,
		// No scheduler: invoicing sweeps run in apps/scheduler.
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
