package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/cadence"
	"github.com/smallbiznis/incomeengine/internal/clock"
	enginedomain "github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/engine/registry"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/lock"
	obscontext "github.com/smallbiznis/incomeengine/internal/observability/context"
	obsmetrics "github.com/smallbiznis/incomeengine/internal/observability/metrics"
	"github.com/smallbiznis/incomeengine/internal/observability/tracing"
	"github.com/smallbiznis/incomeengine/internal/scheduler/guard"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Registry *registry.Registry
	Ledger   ledgerdomain.Service
	Locks    *lock.KeyedLock
	Clock    clock.Clock
	GenID    *snowflake.Node
	Log      *zap.Logger
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
	Config   Config                       `optional:"true"`
}

// Job is work fired on a cadence that is not an engine, such as the daily
// summary. It records nothing against engine totals.
type Job struct {
	Name    string
	Cadence cadence.Cadence
	Run     func(ctx context.Context) error
}

// Scheduler arms one timer per engine and per job. Each timer computes its
// next activation from the cadence in effect at the time, so overrides take
// hold after the pending firing.
type Scheduler struct {
	registry *registry.Registry
	ledger   ledgerdomain.Service
	locks    *lock.KeyedLock
	clock    clock.Clock
	genID    *snowflake.Node
	log      *zap.Logger
	metrics  *obsmetrics.SchedulerMetrics
	tracer   trace.Tracer
	cfg      Config

	mu     sync.Mutex
	jobs   []Job
	cancel context.CancelFunc
	loops  sync.WaitGroup
	runs   sync.WaitGroup
}

func New(p Params) (*Scheduler, error) {
	if p.Registry == nil || p.Ledger == nil || p.Locks == nil || p.Clock == nil || p.GenID == nil || p.Log == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		registry: p.Registry,
		ledger:   p.Ledger,
		locks:    p.Locks,
		clock:    p.Clock,
		genID:    p.GenID,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		metrics:  p.Metrics,
		tracer:   otel.Tracer("incomeengine/scheduler"),
		cfg:      p.Config.withDefaults(),
	}, nil
}

// RegisterJob adds a job. Jobs must be registered before Start.
func (s *Scheduler) RegisterJob(job Job) error {
	job.Name = strings.TrimSpace(job.Name)
	if job.Name == "" || job.Run == nil || job.Cadence.IsZero() {
		return ErrInvalidJob
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start arms the timers. Calling it on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, entry := range s.registry.All() {
		name := entry.Name
		s.loops.Add(1)
		go s.loop(ctx, name,
			func(now time.Time) (time.Time, error) {
				c, err := s.registry.Cadence(name)
				if err != nil {
					return time.Time{}, err
				}
				return c.Next(now), nil
			},
			func(ctx context.Context) { s.fireEngine(ctx, name) },
		)
	}
	for _, job := range s.jobs {
		job := job
		s.loops.Add(1)
		go s.loop(ctx, job.Name,
			func(now time.Time) (time.Time, error) { return job.Cadence.Next(now), nil },
			func(ctx context.Context) { s.fireJob(ctx, job) },
		)
	}

	s.log.Info("scheduler.started",
		zap.Int("engines", s.registry.Len()),
		zap.Int("jobs", len(s.jobs)),
	)
}

// Stop disarms the timers and waits for in-flight runs, bounded by ctx and
// the configured grace period. Runs still going after that keep going, and
// Stop reports them in an ErrStopTimeout since their accrual may be lost.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		s.runs.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.cfg.StopGrace)
	defer grace.Stop()
	select {
	case <-done:
		s.log.Info("scheduler.stopped")
		return nil
	case <-grace.C:
		abandoned := s.inFlight()
		s.log.Error("scheduler.stop.timeout",
			zap.Duration("grace", s.cfg.StopGrace),
			zap.Strings("abandoned", abandoned),
		)
		return fmt.Errorf("%w: %s", ErrStopTimeout, strings.Join(abandoned, ", "))
	case <-ctx.Done():
		abandoned := s.inFlight()
		s.log.Error("scheduler.stop.cancelled", zap.Strings("abandoned", abandoned), zap.Error(ctx.Err()))
		return fmt.Errorf("%w: %s: %w", ErrStopTimeout, strings.Join(abandoned, ", "), ctx.Err())
	}
}

// inFlight lists the engines and jobs with a run still holding its lock.
func (s *Scheduler) inFlight() []string {
	var names []string
	for _, entry := range s.registry.All() {
		if s.locks.Held(runLockKey(entry.Name)) {
			names = append(names, entry.Name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if s.locks.Held(jobLockKey(job.Name)) {
			names = append(names, job.Name)
		}
	}
	return names
}

// TriggerNow runs an engine immediately, regardless of its enabled flag,
// and returns the amount it accrued. The run is detached from ctx
// cancellation so a dropped caller does not abort it.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) (decimal.Decimal, error) {
	if _, err := s.registry.Get(name); err != nil {
		return decimal.Zero, err
	}
	return s.execute(context.WithoutCancel(ctx), strings.TrimSpace(name), guard.TriggerManual)
}

// SetEnabled flips the persistent enabled flag. A run already in flight is
// not interrupted.
func (s *Scheduler) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if _, err := s.registry.Get(name); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if err := s.ledger.SetEngineEnabled(ctx, name, enabled); err != nil {
		return err
	}
	s.logger(ctx).Info("scheduler.engine.toggled",
		zap.String("engine", name),
		zap.Bool("enabled", enabled),
	)
	return nil
}

// Running reports whether name has a run in flight in this process.
func (s *Scheduler) Running(name string) bool {
	return s.locks.Held(runLockKey(strings.TrimSpace(name)))
}

// NextRun returns the next activation of an engine after now.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	c, err := s.registry.Cadence(name)
	if err != nil {
		return time.Time{}, err
	}
	return c.Next(s.clock.Now()), nil
}

func (s *Scheduler) loop(
	ctx context.Context,
	name string,
	nextFn func(now time.Time) (time.Time, error),
	fire func(ctx context.Context),
) {
	defer s.loops.Done()

	var last time.Time
	for {
		now := s.clock.Now()
		from := now
		// a timer can wake a hair before its wall-clock target
		if !last.IsZero() && !now.After(last) {
			from = last
		}
		next, err := nextFn(from)
		if err != nil {
			s.log.Error("scheduler.timer.failed", zap.String("engine", name), zap.Error(err))
			return
		}
		if next.IsZero() {
			s.log.Info("scheduler.timer.idle", zap.String("engine", name))
			return
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.metrics.ObserveTimerLag(name, s.clock.Now().Sub(next))
		last = next
		fire(ctx)
	}
}

func (s *Scheduler) fireEngine(ctx context.Context, name string) {
	cfg, err := s.ledger.GetEngineConfig(ctx, name)
	if err != nil {
		s.log.Error("scheduler.engine.config_failed", zap.String("engine", name), zap.Error(err))
		return
	}
	if err := guard.EnsureEngineCanFire(cfg.Enabled, guard.TriggerSchedule); err != nil {
		s.skip(ctx, name, guard.TriggerSchedule, obsmetrics.SkipReasonDisabled, ledgerdomain.LogLevelDebug,
			"Skipped scheduled run: engine disabled")
		return
	}

	runCtx := context.WithoutCancel(ctx)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		_, _ = s.execute(runCtx, name, guard.TriggerSchedule)
	}()
}

func (s *Scheduler) execute(ctx context.Context, name, trigger string) (decimal.Decimal, error) {
	engine, err := s.registry.Get(name)
	if err != nil {
		return decimal.Zero, err
	}

	release, ok, err := s.locks.TryAcquire(ctx, runLockKey(name), s.cfg.LockTTL)
	if err != nil {
		s.metrics.IncSkip(name, obsmetrics.SkipReasonLockError)
		s.log.Error("scheduler.engine.lock_failed", zap.String("engine", name), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %w", ErrRunLockUnavailable, err)
	}
	if !ok {
		s.skip(ctx, name, trigger, obsmetrics.SkipReasonAlreadyRunning, ledgerdomain.LogLevelInfo,
			"Skipped run: engine already running")
		return decimal.Zero, enginedomain.ErrAlreadyRunning
	}
	defer release()

	run := s.newRun(name)
	ctx = obscontext.WithEngineRun(ctx, name, run.runID, trigger)
	ctx, span := s.tracer.Start(ctx, "engine.run",
		trace.WithAttributes(tracing.SafeAttributes(
			attribute.String("engine", name),
			attribute.String("trigger", trigger),
		)...),
	)
	defer span.End()

	s.logRunStart(ctx)
	s.metrics.IncRun(name, trigger)

	amount, runErr := s.invoke(ctx, engine)
	s.metrics.ObserveRun(name, time.Since(run.startedAt))

	if runErr != nil {
		runErr = enginedomain.NewEngineRunError(name, runErr)
		s.metrics.IncError(name, runErr)
		span.RecordError(tracing.SafeError(runErr))
		span.SetStatus(codes.Error, obsmetrics.ClassifyRunReason(runErr))
		s.note(ctx, ledgerdomain.LogLevelError, name, "Run failed: "+runErr.Error(), map[string]any{
			"run_id":     run.runID,
			"trigger":    trigger,
			"error_type": obsmetrics.ClassifySchedulerErrorType(runErr),
		})
	}

	accrued := ledgerdomain.NormalizeAmount(guard.AccruableAmount(amount, runErr))
	if err := s.ledger.AccrueEngineRun(ctx, name, accrued, s.clock.Now()); err != nil {
		s.logger(ctx).Error("scheduler.engine.accrue_failed", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("accrue engine run: %w", err)
		}
	}

	s.logRunFinish(ctx, run, accrued, runErr)
	if runErr != nil {
		return decimal.Zero, runErr
	}
	s.metrics.AddEarned(name, accrued.InexactFloat64())
	return accrued, nil
}

func (s *Scheduler) invoke(ctx context.Context, engine enginedomain.Engine) (amount decimal.Decimal, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger(ctx).Error("scheduler.engine.panic",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			amount = decimal.Zero
			err = fmt.Errorf("%w: %w", obsmetrics.ErrEnginePanic, &enginedomain.PanicError{Value: r})
		}
	}()
	return engine.Run(ctx)
}

func (s *Scheduler) fireJob(ctx context.Context, job Job) {
	release, ok, err := s.locks.TryAcquire(ctx, jobLockKey(job.Name), s.cfg.LockTTL)
	if err != nil {
		s.log.Error("scheduler.job.lock_failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	if !ok {
		s.log.Info("scheduler.job.skipped", zap.String("job", job.Name), zap.String("reason", obsmetrics.SkipReasonAlreadyRunning))
		return
	}

	runCtx := context.WithoutCancel(ctx)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer release()
		_ = s.runJob(runCtx, job)
	}()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) (err error) {
	run := s.newRun(job.Name)
	s.logJobStart(ctx, run)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w", obsmetrics.ErrEnginePanic, &enginedomain.PanicError{Value: r})
		}
		s.logJobFinish(ctx, run, err)
	}()
	return job.Run(ctx)
}

func runLockKey(engine string) string {
	return "engine-run:" + engine
}

func jobLockKey(job string) string {
	return "job-run:" + job
}
