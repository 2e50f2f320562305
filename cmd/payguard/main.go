package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/rovamart/payguard/internal/authorization"
	"github.com/rovamart/payguard/internal/clock"
	"github.com/rovamart/payguard/internal/compliance"
	"github.com/rovamart/payguard/internal/config"
	"github.com/rovamart/payguard/internal/eligibility"
	"github.com/rovamart/payguard/internal/logger"
	"github.com/rovamart/payguard/internal/migration"
	"github.com/rovamart/payguard/internal/observability"
	"github.com/rovamart/payguard/internal/payout"
	"github.com/rovamart/payguard/internal/ratelimit"
	"github.com/rovamart/payguard/internal/seed"
	"github.com/rovamart/payguard/internal/server"
	"github.com/rovamart/payguard/pkg/db"
)

func main() {
	fx.New(modules()).Run()
}

func modules() fx.Option {
	return fx.Options(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(newSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,

		authorization.Module,
		ratelimit.Module,
		eligibility.Module,
		payout.Module,
		compliance.Module,
		server.Module,
	)
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
