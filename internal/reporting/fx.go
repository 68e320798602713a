package reporting

import (
	"context"

	"github.com/smallbiznis/incomeengine/internal/cadence"
	"github.com/smallbiznis/incomeengine/internal/reporting/domain"
	"github.com/smallbiznis/incomeengine/internal/reporting/service"
	"github.com/smallbiznis/incomeengine/internal/scheduler"
	"go.uber.org/fx"
)

// DailySummaryCadence fires at 21:00 UTC.
const DailySummaryCadence = "0 21 * * *"

var Module = fx.Module("reporting.service",
	fx.Provide(func(s *scheduler.Scheduler) service.RunState { return s }),
	fx.Provide(service.New),
	fx.Invoke(RegisterDailySummary),
)

// RegisterDailySummary schedules the daily digest alongside the engines.
func RegisterDailySummary(sched *scheduler.Scheduler, svc domain.Service) error {
	return sched.RegisterJob(scheduler.Job{
		Name:    "daily_summary",
		Cadence: cadence.MustParse(DailySummaryCadence),
		Run: func(ctx context.Context) error {
			_, err := svc.DailySummary(ctx)
			return err
		},
	})
}
