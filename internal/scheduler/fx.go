package scheduler

import (
	"context"

	"github.com/smallbiznis/incomeengine/internal/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(provideLocks),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func provideLocks(remote *lock.RedisLocker, log *zap.Logger) *lock.KeyedLock {
	return lock.NewKeyedLock(remote, log.Named("scheduler.lock"))
}

// NewScheduler ties the timers to the app lifecycle. With the scheduler
// disabled, engines still run through TriggerNow.
func NewScheduler(lc fx.Lifecycle, cfg Config, sched *Scheduler) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
