package main

import (
	"github.com/bwmarrin/snowflake"
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
	"github.com/smallbiznis/incomeengine/pkg/db"
	"github.com/smallbiznis/incomeengine/pkg/redis"
	"go.uber.org/fx"
)

// Headless worker: engines and the daily summary run on their cadences, no
// HTTP surface. Run alongside an API process only with REDIS_ADDR set so the
// engine locks are shared.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		redis.Module,
		lock.Module,
		ratelimit.Module,
		clock.Module,

		providers.Module,
		// Reporting reads PayPal balances for the summary.
		payout.Module,

		ledger.Module,
		engines.Module,
		registry.Module,
		scheduler.Module,
		reporting.Module,

		// No server module!
	)
	app.Run()
}

// Node 2 keeps ids from colliding with the API process.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
