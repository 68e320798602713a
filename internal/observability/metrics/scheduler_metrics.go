package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/incomeengine/pkg/errutil"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeProvider         = "provider"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypePanic            = "panic"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerRunReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerRunReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerRunReasonSerializationFailure = "serialization_failure"
	SchedulerRunReasonUniqueViolation      = "unique_violation"
	SchedulerRunReasonProviderUnavailable  = "provider_unavailable"
	SchedulerRunReasonPanic                = "panic"
	SchedulerRunReasonUnknown              = "unknown"
)

const (
	SkipReasonDisabled       = "disabled"
	SkipReasonAlreadyRunning = "already_running"
	SkipReasonLockError      = "lock_error"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// ErrEnginePanic marks a run that ended in a recovered panic.
var ErrEnginePanic = errors.New("engine_panic")

// SchedulerMetrics captures engine scheduling health signals.
type SchedulerMetrics struct {
	engineRuns     *prometheus.CounterVec
	engineDuration *prometheus.HistogramVec
	engineErrors   *prometheus.CounterVec
	engineSkips    *prometheus.CounterVec
	engineEarned   *prometheus.CounterVec
	engineRunning  *prometheus.GaugeVec
	timerLag       *prometheus.HistogramVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "incomeengine"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	engineRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incomeengine_engine_runs_total",
		Help:        "Engine runs started, by engine and trigger.",
		ConstLabels: constLabels,
	}, []string{"engine", "trigger"})
	engineDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "incomeengine_engine_run_duration_seconds",
		Help:        "Engine run latency including collaborator calls.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	}, []string{"engine"})
	engineErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incomeengine_engine_run_errors_total",
		Help:        "Engine runs that failed, by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"engine", "reason"})
	engineSkips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incomeengine_engine_run_skips_total",
		Help:        "Engine firings that did not start a run.",
		ConstLabels: constLabels,
	}, []string{"engine", "reason"})
	engineEarned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incomeengine_engine_earned_usd_total",
		Help:        "Amounts accrued to engines after successful runs.",
		ConstLabels: constLabels,
	}, []string{"engine"})
	engineRunning := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "incomeengine_engine_running",
		Help:        "1 while an engine run is in flight in this process.",
		ConstLabels: constLabels,
	}, []string{"engine"})
	timerLag := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "incomeengine_scheduler_timer_lag_seconds",
		Help:        "Delay between an engine's planned activation and the actual firing.",
		Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"engine"})

	registerer.MustRegister(
		engineRuns,
		engineDuration,
		engineErrors,
		engineSkips,
		engineEarned,
		engineRunning,
		timerLag,
	)

	return &SchedulerMetrics{
		engineRuns:     engineRuns,
		engineDuration: engineDuration,
		engineErrors:   engineErrors,
		engineSkips:    engineSkips,
		engineEarned:   engineEarned,
		engineRunning:  engineRunning,
		timerLag:       timerLag,
	}
}

// IncRun counts a started run and marks the engine as running.
func (m *SchedulerMetrics) IncRun(engine, trigger string) {
	if m == nil {
		return
	}
	m.engineRuns.WithLabelValues(engine, trigger).Inc()
	m.engineRunning.WithLabelValues(engine).Set(1)
}

// ObserveRun records run latency and clears the running gauge.
func (m *SchedulerMetrics) ObserveRun(engine string, duration time.Duration) {
	if m == nil {
		return
	}
	m.engineDuration.WithLabelValues(engine).Observe(duration.Seconds())
	m.engineRunning.WithLabelValues(engine).Set(0)
}

func (m *SchedulerMetrics) IncError(engine string, err error) {
	if m == nil || err == nil {
		return
	}
	m.engineErrors.WithLabelValues(engine, ClassifyRunReason(err)).Inc()
}

func (m *SchedulerMetrics) IncSkip(engine, reason string) {
	if m == nil {
		return
	}
	m.engineSkips.WithLabelValues(engine, reason).Inc()
}

// AddEarned adds a non-negative accrued amount. Negative corrections are
// not representable on a counter and are dropped.
func (m *SchedulerMetrics) AddEarned(engine string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.engineEarned.WithLabelValues(engine).Add(amount)
}

func (m *SchedulerMetrics) ObserveTimerLag(engine string, lag time.Duration) {
	if m == nil {
		return
	}
	if lag < 0 {
		lag = 0
	}
	m.timerLag.WithLabelValues(engine).Observe(lag.Seconds())
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logging.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case errors.Is(err, ErrEnginePanic):
		return SchedulerErrorTypePanic
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return SchedulerErrorTypeDeadlineExceeded
	case errors.Is(err, errutil.ErrUnavailable):
		return SchedulerErrorTypeProvider
	case isDBError(err):
		return SchedulerErrorTypeDB
	default:
		return SchedulerErrorTypeBusinessRule
	}
}

// ClassifyRunReason maps engine run errors to low-cardinality reasons.
func ClassifyRunReason(err error) string {
	switch {
	case err == nil:
		return SchedulerRunReasonUnknown
	case errors.Is(err, ErrEnginePanic):
		return SchedulerRunReasonPanic
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return SchedulerRunReasonDeadlineExceeded
	case errors.Is(err, errutil.ErrUnavailable):
		return SchedulerRunReasonProviderUnavailable
	case hasPGCode(err, "55P03"):
		return SchedulerRunReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return SchedulerRunReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505"):
		return SchedulerRunReasonUniqueViolation
	default:
		return SchedulerRunReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
