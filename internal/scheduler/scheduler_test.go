package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/cadence"
	"github.com/smallbiznis/incomeengine/internal/clock"
	enginedomain "github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/engine/registry"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/ledger/ledgertest"
	"github.com/smallbiznis/incomeengine/internal/lock"
	obsmetrics "github.com/smallbiznis/incomeengine/internal/observability/metrics"
	"github.com/smallbiznis/incomeengine/internal/scheduler/guard"
	"github.com/smallbiznis/incomeengine/pkg/errutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	sched  *Scheduler
	ledger ledgerdomain.Service
}

type harnessOptions struct {
	clock   clock.Clock
	metrics *obsmetrics.SchedulerMetrics
	log     *zap.Logger
	config  Config
}

func newHarness(t *testing.T, clk clock.Clock, metrics *obsmetrics.SchedulerMetrics, regs ...enginedomain.Registration) harness {
	t.Helper()
	return newHarnessWith(t, harnessOptions{clock: clk, metrics: metrics}, regs...)
}

func newHarnessWith(t *testing.T, opts harnessOptions, regs ...enginedomain.Registration) harness {
	t.Helper()

	clk := opts.clock
	ledger, _ := ledgertest.NewService(t, clk)
	log := opts.log
	if log == nil {
		log = zaptest.NewLogger(t)
	}
	cfg := opts.config
	if cfg.StopGrace == 0 {
		cfg = Config{Enabled: true, StopGrace: 2 * time.Second}
	}
	reg, err := registry.New(registry.Params{
		Registrations: regs,
		Ledger:        ledger,
		Log:           log,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Init(context.Background()))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	sched, err := New(Params{
		Registry: reg,
		Ledger:   ledger,
		Locks:    lock.NewKeyedLock(nil, log),
		Clock:    clk,
		GenID:    node,
		Log:      log,
		Metrics:  opts.metrics,
		Config:   cfg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	return harness{sched: sched, ledger: ledger}
}

func countingEngine(name string, amount string, runs *atomic.Int32) enginedomain.Engine {
	return enginedomain.EngineFunc{
		EngineName: name,
		Fn: func(context.Context) (decimal.Decimal, error) {
			runs.Add(1)
			return decimal.RequireFromString(amount), nil
		},
	}
}

func TestTriggerNowRunsDisabledEngineAndAccrues(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)

	var runs atomic.Int32
	h := newHarness(t, clk, nil, enginedomain.Registration{
		Engine:  countingEngine("writer", "1.5", &runs),
		Cadence: cadence.MustParse("0 */6 * * *"),
	})
	require.NoError(t, h.sched.SetEnabled(ctx, "writer", false))

	amount, err := h.sched.TriggerNow(ctx, "writer")
	require.NoError(t, err)
	assert.Equal(t, "1.5", amount.String())
	assert.Equal(t, int32(1), runs.Load())

	cfg, err := h.ledger.GetEngineConfig(ctx, "writer")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	require.NotNil(t, cfg.LastRun)
	assert.True(t, cfg.LastRun.Equal(now))
	assert.Equal(t, "1.5", cfg.TotalEarned.String())
}

func TestTriggerNowUnknownEngine(t *testing.T) {
	h := newHarness(t, clock.NewFakeClock(time.Now()), nil)

	_, err := h.sched.TriggerNow(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, enginedomain.ErrEngineNotFound)
	assert.ErrorIs(t, err, errutil.ErrNotFound)

	err = h.sched.SetEnabled(context.Background(), "does-not-exist", false)
	assert.ErrorIs(t, err, enginedomain.ErrEngineNotFound)
}

func TestTriggerNowWhileRunningConflicts(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	unblock := make(chan struct{})
	slow := enginedomain.EngineFunc{
		EngineName: "slow",
		Fn: func(ctx context.Context) (decimal.Decimal, error) {
			close(started)
			<-unblock
			return decimal.NewFromInt(2), nil
		},
	}
	h := newHarness(t, clock.NewFakeClock(time.Now()), nil, enginedomain.Registration{
		Engine:  slow,
		Cadence: cadence.MustParse("0 */6 * * *"),
	})

	type result struct {
		amount decimal.Decimal
		err    error
	}
	first := make(chan result, 1)
	go func() {
		amount, err := h.sched.TriggerNow(ctx, "slow")
		first <- result{amount, err}
	}()
	<-started
	assert.True(t, h.sched.Running("slow"))

	_, err := h.sched.TriggerNow(ctx, "slow")
	require.ErrorIs(t, err, enginedomain.ErrAlreadyRunning)
	assert.ErrorIs(t, err, errutil.ErrConflict)

	close(unblock)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, "2", res.amount.String())
	assert.False(t, h.sched.Running("slow"))

	logs, err := h.ledger.RecentLogs(ctx, ledgerdomain.LogFilter{Engine: "slow", Level: ledgerdomain.LogLevelInfo})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "already running")
}

func TestLongRunIsNotCancelledByScheduler(t *testing.T) {
	ctx := context.Background()
	var sawCancel atomic.Bool
	long := enginedomain.EngineFunc{
		EngineName: "long",
		Fn: func(ctx context.Context) (decimal.Decimal, error) {
			select {
			case <-ctx.Done():
				sawCancel.Store(true)
				return decimal.Zero, ctx.Err()
			case <-time.After(300 * time.Millisecond):
			}
			return decimal.RequireFromString("4.2"), nil
		},
	}
	h := newHarnessWith(t, harnessOptions{
		clock:  clock.NewFakeClock(time.Now()),
		config: Config{Enabled: true, LockTTL: 50 * time.Millisecond, StopGrace: time.Second},
	}, enginedomain.Registration{
		Engine:  long,
		Cadence: cadence.MustParse("0 */6 * * *"),
	})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	amount, err := h.sched.TriggerNow(cancelled, "long")
	require.NoError(t, err)
	assert.Equal(t, "4.2", amount.String())
	assert.False(t, sawCancel.Load())

	cfg, err := h.ledger.GetEngineConfig(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "4.2", cfg.TotalEarned.String())
}

func TestTriggerNowDuringScheduledFiringConflicts(t *testing.T) {
	ctx := context.Background()
	var (
		runs    atomic.Int32
		started = make(chan struct{})
		unblock = make(chan struct{})
	)
	blocking := enginedomain.EngineFunc{
		EngineName: "busy",
		Fn: func(context.Context) (decimal.Decimal, error) {
			if runs.Add(1) == 1 {
				close(started)
			}
			<-unblock
			return decimal.NewFromInt(1), nil
		},
	}
	h := newHarness(t, clock.SystemClock{}, nil, enginedomain.Registration{
		Engine:  blocking,
		Cadence: cadence.Every(10 * time.Millisecond),
	})

	h.sched.Start()
	<-started

	_, err := h.sched.TriggerNow(ctx, "busy")
	require.ErrorIs(t, err, enginedomain.ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		logs, err := h.ledger.RecentLogs(ctx, ledgerdomain.LogFilter{Engine: "busy", Level: ledgerdomain.LogLevelInfo})
		if err != nil {
			return false
		}
		for _, entry := range logs {
			if entry.Data["trigger"] == guard.TriggerSchedule && strings.Contains(entry.Message, "already running") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(unblock)
	require.NoError(t, h.sched.Stop(ctx))
}

func TestRunLogCarriesRunFieldsOnce(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	var runs atomic.Int32
	h := newHarnessWith(t, harnessOptions{
		clock: clock.NewFakeClock(time.Now()),
		log:   zap.New(core),
	}, enginedomain.Registration{
		Engine:  countingEngine("writer", "1", &runs),
		Cadence: cadence.MustParse("0 */6 * * *"),
	})

	_, err := h.sched.TriggerNow(context.Background(), "writer")
	require.NoError(t, err)

	for _, msg := range []string{"scheduler.engine.start", "scheduler.engine.finish"} {
		entries := recorded.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		counts := map[string]int{}
		for _, field := range entries[0].Context {
			counts[field.Key]++
		}
		assert.Equal(t, 1, counts["engine"], msg)
		assert.Equal(t, 1, counts["run_id"], msg)
		assert.Equal(t, 1, counts["trigger"], msg)
		assert.Equal(t, "writer", entries[0].ContextMap()["engine"])
	}
}

func TestStopReportsRunsStillInFlight(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	unblock := make(chan struct{})
	var once atomic.Bool
	stuck := enginedomain.EngineFunc{
		EngineName: "stuck",
		Fn: func(context.Context) (decimal.Decimal, error) {
			if once.CompareAndSwap(false, true) {
				close(started)
			}
			<-unblock
			return decimal.Zero, nil
		},
	}
	h := newHarnessWith(t, harnessOptions{
		clock:  clock.SystemClock{},
		config: Config{Enabled: true, StopGrace: 50 * time.Millisecond},
	}, enginedomain.Registration{
		Engine:  stuck,
		Cadence: cadence.Every(10 * time.Millisecond),
	})

	h.sched.Start()
	<-started

	err := h.sched.Stop(ctx)
	require.ErrorIs(t, err, ErrStopTimeout)
	assert.Contains(t, err.Error(), "stuck")

	close(unblock)
	require.Eventually(t, func() bool { return !h.sched.Running("stuck") }, 2*time.Second, 5*time.Millisecond)
}

func TestFailedRunLogsErrorAndAccruesNothing(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	broken := enginedomain.EngineFunc{
		EngineName: "broken",
		Fn: func(context.Context) (decimal.Decimal, error) {
			return decimal.NewFromInt(5), errors.New("upstream exploded")
		},
	}
	h := newHarness(t, clock.NewFakeClock(now), nil, enginedomain.Registration{
		Engine:  broken,
		Cadence: cadence.MustParse("0 */6 * * *"),
	})

	_, err := h.sched.TriggerNow(ctx, "broken")
	require.Error(t, err)
	var runErr *enginedomain.EngineRunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "broken", runErr.Engine)

	cfg, err := h.ledger.GetEngineConfig(ctx, "broken")
	require.NoError(t, err)
	require.NotNil(t, cfg.LastRun)
	assert.True(t, cfg.TotalEarned.IsZero())

	logs, err := h.ledger.RecentLogs(ctx, ledgerdomain.LogFilter{Engine: "broken", Level: ledgerdomain.LogLevelError})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "upstream exploded")
}

func TestPanickingEngineIsRecovered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clock.NewFakeClock(time.Now()), nil, enginedomain.Registration{
		Engine: enginedomain.EngineFunc{
			EngineName: "panicky",
			Fn: func(context.Context) (decimal.Decimal, error) {
				panic("nil map")
			},
		},
		Cadence: cadence.MustParse("0 */6 * * *"),
	})

	_, err := h.sched.TriggerNow(ctx, "panicky")
	require.ErrorIs(t, err, obsmetrics.ErrEnginePanic)
	var panicErr *enginedomain.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "nil map", panicErr.Value)
	assert.False(t, h.sched.Running("panicky"))
}

func TestScheduledFiringSkipsDisabledEngine(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	h := newHarness(t, clock.SystemClock{}, nil, enginedomain.Registration{
		Engine:  countingEngine("off", "1", &runs),
		Cadence: cadence.Every(10 * time.Millisecond),
	})
	require.NoError(t, h.sched.SetEnabled(ctx, "off", false))

	h.sched.Start()
	require.Eventually(t, func() bool {
		logs, err := h.ledger.RecentLogs(ctx, ledgerdomain.LogFilter{Engine: "off", Level: ledgerdomain.LogLevelDebug})
		return err == nil && len(logs) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.sched.Stop(ctx))

	assert.Zero(t, runs.Load())
	cfg, err := h.ledger.GetEngineConfig(ctx, "off")
	require.NoError(t, err)
	assert.Nil(t, cfg.LastRun)
	assert.True(t, cfg.TotalEarned.IsZero())
}

func TestScheduledFiringRunsEnabledEngine(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	h := newHarness(t, clock.SystemClock{}, nil, enginedomain.Registration{
		Engine:  countingEngine("on", "0.25", &runs),
		Cadence: cadence.Every(10 * time.Millisecond),
	})

	h.sched.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.sched.Stop(ctx))

	cfg, err := h.ledger.GetEngineConfig(ctx, "on")
	require.NoError(t, err)
	require.NotNil(t, cfg.LastRun)
	expected := decimal.RequireFromString("0.25").Mul(decimal.NewFromInt(int64(runs.Load())))
	assert.True(t, cfg.TotalEarned.Equal(expected), "total %s, want %s", cfg.TotalEarned, expected)
}

func TestRegisteredJobFires(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, clock.SystemClock{}, nil)

	var fired atomic.Int32
	require.NoError(t, h.sched.RegisterJob(Job{
		Name:    "daily_summary",
		Cadence: cadence.Every(10 * time.Millisecond),
		Run: func(context.Context) error {
			fired.Add(1)
			return nil
		},
	}))
	assert.ErrorIs(t, h.sched.RegisterJob(Job{
		Name:    "daily_summary",
		Cadence: cadence.Every(time.Second),
		Run:     func(context.Context) error { return nil },
	}), ErrDuplicateJob)
	assert.ErrorIs(t, h.sched.RegisterJob(Job{Name: "empty"}), ErrInvalidJob)

	h.sched.Start()
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.sched.RegisterJob(Job{
		Name:    "late",
		Cadence: cadence.Every(time.Second),
		Run:     func(context.Context) error { return nil },
	}), ErrAlreadyStarted)
	require.NoError(t, h.sched.Stop(ctx))
}

func TestNextRunUsesCadence(t *testing.T) {
	now := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	var runs atomic.Int32
	h := newHarness(t, clock.NewFakeClock(now), nil, enginedomain.Registration{
		Engine:  countingEngine("social", "0", &runs),
		Cadence: cadence.MustParse("0 8,14,20 * * *"),
	})

	next, err := h.sched.NextRun("social")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), next)
}

func TestRunMetricsAreRecorded(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	metrics := obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "incomeengine",
		Environment: "test",
	})

	var runs atomic.Int32
	h := newHarness(t, clock.NewFakeClock(time.Now()), metrics, enginedomain.Registration{
		Engine:  countingEngine("metered", "3", &runs),
		Cadence: cadence.MustParse("0 */6 * * *"),
	})

	_, err := h.sched.TriggerNow(context.Background(), "metered")
	require.NoError(t, err)

	runLabels := map[string]string{
		"service": "incomeengine",
		"env":     "test",
		"engine":  "metered",
		"trigger": "manual",
	}
	assert.Equal(t, float64(1), getCounterValue(t, registry, "incomeengine_engine_runs_total", runLabels))

	earnedLabels := map[string]string{
		"service": "incomeengine",
		"env":     "test",
		"engine":  "metered",
	}
	assert.Equal(t, float64(3), getCounterValue(t, registry, "incomeengine_engine_earned_usd_total", earnedLabels))
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
