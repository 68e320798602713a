package scheduler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	obslogger "github.com/smallbiznis/incomeengine/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/incomeengine/internal/observability/metrics"
	"go.uber.org/zap"
)

type engineRun struct {
	name      string
	runID     string
	startedAt time.Time
}

func (s *Scheduler) newRun(name string) *engineRun {
	return &engineRun{
		name:      name,
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

// logRunStart and logRunFinish expect ctx to carry the run; engine, run_id
// and trigger come from there.
func (s *Scheduler) logRunStart(ctx context.Context) {
	s.logger(ctx).Info("scheduler.engine.start")
}

func (s *Scheduler) logRunFinish(ctx context.Context, run *engineRun, accrued decimal.Decimal, err error) {
	fields := []zap.Field{
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.String("accrued", accrued.StringFixed(2)),
	}
	log := s.logger(ctx)
	if err != nil {
		log.Warn("scheduler.engine.finish", append(fields,
			zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
			zap.String("reason", obsmetrics.ClassifyRunReason(err)),
			zap.Error(err),
		)...)
		return
	}
	log.Info("scheduler.engine.finish", fields...)
}

// skip records a firing that did not start a run in metrics, the process log
// and the persisted activity log.
func (s *Scheduler) skip(ctx context.Context, name, trigger, reason string, level ledgerdomain.LogLevel, message string) {
	s.metrics.IncSkip(name, reason)
	s.logger(ctx).Info("scheduler.engine.skipped",
		zap.String("engine", name),
		zap.String("trigger", trigger),
		zap.String("reason", reason),
	)
	s.note(ctx, level, name, message, map[string]any{
		"trigger": trigger,
		"reason":  reason,
	})
}

// note appends to the activity log. A failed append is logged and dropped.
func (s *Scheduler) note(ctx context.Context, level ledgerdomain.LogLevel, engine, message string, data map[string]any) {
	err := s.ledger.AppendLog(ctx, ledgerdomain.AppendLogRequest{
		Level:   level,
		Engine:  engine,
		Message: message,
		Data:    data,
	})
	if err != nil {
		s.logger(ctx).Warn("scheduler.log.append_failed", zap.String("engine", engine), zap.Error(err))
	}
}

func (s *Scheduler) logJobStart(ctx context.Context, run *engineRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.name),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *engineRun, err error) {
	fields := []zap.Field{
		zap.String("job", run.name),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
	}
	log := s.logger(ctx)
	if err != nil {
		log.Error("scheduler.job.finish", append(fields,
			zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
			zap.Error(err),
		)...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}
