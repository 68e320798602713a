package app

import (
	"context"
	"time"

	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/engine/registry"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	reportingdomain "github.com/smallbiznis/incomeengine/internal/reporting/domain"
	"github.com/smallbiznis/incomeengine/internal/scheduler"
	withdrawaldomain "github.com/smallbiznis/incomeengine/internal/withdrawal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("app",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

// Application is built once at startup and handed to the outer surfaces.
// It owns nothing; every member is also in the fx graph.
type Application struct {
	Config      config.Config
	Ledger      ledgerdomain.Service
	Registry    *registry.Registry
	Scheduler   *scheduler.Scheduler
	Withdrawals withdrawaldomain.Service
	Reports     reportingdomain.Service
	StartedAt   time.Time
}

type Params struct {
	fx.In

	Config      config.Config
	Ledger      ledgerdomain.Service
	Registry    *registry.Registry
	Scheduler   *scheduler.Scheduler
	Withdrawals withdrawaldomain.Service
	Reports     reportingdomain.Service
	Clock       clock.Clock
}

func New(p Params) *Application {
	return &Application{
		Config:      p.Config,
		Ledger:      p.Ledger,
		Registry:    p.Registry,
		Scheduler:   p.Scheduler,
		Withdrawals: p.Withdrawals,
		Reports:     p.Reports,
		StartedAt:   p.Clock.Now(),
	}
}

// Engines lists registered engine names in registration order.
func (a *Application) Engines() []string {
	return a.Registry.Names()
}

func registerHooks(lc fx.Lifecycle, a *Application, log *zap.Logger) {
	log = log.Named("app")
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("app.started",
				zap.String("name", a.Config.AppName),
				zap.String("version", a.Config.AppVersion),
				zap.String("environment", a.Config.Environment),
				zap.Strings("engines", a.Engines()),
				zap.Bool("scheduler_enabled", a.Config.SchedulerEnabled),
				zap.Bool("daily_summary_mail", a.Config.Email.Enabled()),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			log.Info("app.stopping", zap.Duration("uptime", time.Since(a.StartedAt)))
			return nil
		},
	})
}
