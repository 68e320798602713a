package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/incomeengine/internal/app"
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/engine/registry"
	"github.com/smallbiznis/incomeengine/internal/engines"
	"github.com/smallbiznis/incomeengine/internal/ledger"
	"github.com/smallbiznis/incomeengine/internal/lock"
	"github.com/smallbiznis/incomeengine/internal/migration"
	"github.com/smallbiznis/incomeengine/internal/observability"
	"github.com/smallbiznis/incomeengine/internal/payout"
	"github.com/smallbiznis/incomeengine/internal/providers"
	"github.com/smallbiznis/incomeengine/internal/ratelimit"
	"github.com/smallbiznis/incomeengine/internal/reporting"
	"github.com/smallbiznis/incomeengine/internal/scheduler"
	"github.com/smallbiznis/incomeengine/internal/server"
	"github.com/smallbiznis/incomeengine/internal/withdrawal"
	"github.com/smallbiznis/incomeengine/pkg/db"
	"github.com/smallbiznis/incomeengine/pkg/redis"
	"go.uber.org/fx"
)

func main() {
	fxApp := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		redis.Module,
		lock.Module,
		ratelimit.Module,
		clock.Module,

		// Collaborators
		providers.Module,
		payout.Module,

		// Functional Domains
		ledger.Module,
		engines.Module,
		registry.Module,
		scheduler.Module,
		withdrawal.Module,
		reporting.Module,

		app.Module,
		server.Module,
	)
	fxApp.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
