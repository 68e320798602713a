package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/engine/registry"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters/paypal"
	payoutdomain "github.com/smallbiznis/incomeengine/internal/payout/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/email"
	"github.com/smallbiznis/incomeengine/internal/providers/slack"
	"github.com/smallbiznis/incomeengine/internal/reporting/domain"
	"github.com/smallbiznis/incomeengine/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardDays      = 30
	projectionDays     = 7
	recentEarnings     = 20
	reportRecent       = 50
	summaryErrorLimit  = 10
	balanceCallTimeout = 10 * time.Second
	dailySummaryMail   = "daily_summary"
)

// RunState is what the scheduler can tell about an engine.
type RunState interface {
	Running(name string) bool
	NextRun(name string) (time.Time, error)
}

type Params struct {
	fx.In

	Ledger   ledgerdomain.Service
	Registry *registry.Registry
	Payouts  *adapters.Registry
	RunState RunState       `optional:"true"`
	Mailer   email.Provider `optional:"true"`
	Notifier slack.Provider `optional:"true"`
	Config   config.Config
	Clock    clock.Clock
	Log      *zap.Logger
}

type Service struct {
	ledger    ledgerdomain.Service
	registry  *registry.Registry
	payouts   *adapters.Registry
	runState  RunState
	mailer    email.Provider
	notifier  slack.Provider
	cfg       config.Config
	clock     clock.Clock
	log       *zap.Logger
	startedAt time.Time
}

func New(p Params) domain.Service {
	mailer := p.Mailer
	if mailer == nil {
		mailer = &email.NoOpProvider{}
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = &slack.NoOpProvider{}
	}
	return &Service{
		ledger:    p.Ledger,
		registry:  p.Registry,
		payouts:   p.Payouts,
		runState:  p.RunState,
		mailer:    mailer,
		notifier:  notifier,
		cfg:       p.Config,
		clock:     p.Clock,
		log:       p.Log.Named("reporting.service"),
		startedAt: p.Clock.Now(),
	}
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	var (
		out     domain.Dashboard
		configs []ledgerdomain.EngineConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overview, err := s.overview(gctx)
		out.Overview = overview
		return err
	})
	g.Go(func() (err error) {
		out.EarningsBySource, err = s.ledger.EarningsBySource(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.DailyEarnings, err = s.ledger.DailyEarnings(gctx, dashboardDays)
		return err
	})
	g.Go(func() (err error) {
		out.RecentEarnings, err = s.ledger.RecentEarnings(gctx, recentEarnings)
		return err
	})
	g.Go(func() (err error) {
		configs, err = s.ledger.ListEngineConfigs(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.ContentStats, err = s.ledger.ContentStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Withdrawals, err = s.ledger.ListWithdrawals(gctx)
		return err
	})
	g.Go(func() error {
		out.Balances = s.balances(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, fmt.Errorf("build dashboard: %w", err)
	}

	out.Engines = s.engineStatuses(configs)
	out.SystemStatus = domain.SystemStatus{
		UptimeSeconds:    s.uptime().Seconds(),
		LastUpdated:      s.clock.Now(),
		ActiveEngines:    countEnabled(configs),
		TotalEngines:     s.registry.Len(),
		SchedulerEnabled: s.cfg.SchedulerEnabled,
	}
	return out, nil
}

func (s *Service) overview(ctx context.Context) (domain.Overview, error) {
	total, err := s.ledger.TotalEarnings(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	today, err := s.ledger.EarningsSince(ctx, startOfDay(s.clock.Now()))
	if err != nil {
		return domain.Overview{}, err
	}
	week, err := s.ledger.DailyEarnings(ctx, projectionDays)
	if err != nil {
		return domain.Overview{}, err
	}
	withdrawn, err := s.ledger.TotalWithdrawn(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	available, err := s.ledger.AvailableBalance(ctx)
	if err != nil {
		return domain.Overview{}, err
	}

	avg := dailyAverage(week)
	return domain.Overview{
		TotalEarnings:     total,
		TodayEarnings:     today,
		DailyAverage:      avg,
		WeeklyProjection:  project(avg, 7),
		MonthlyProjection: project(avg, 30),
		YearlyProjection:  project(avg, 365),
		TotalWithdrawn:    withdrawn,
		AvailableBalance:  available,
	}, nil
}

// dailyAverage averages over every day in the window, zero days included.
func dailyAverage(days []ledgerdomain.DailyTotal) decimal.Decimal {
	if len(days) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, d := range days {
		sum = sum.Add(d.Total)
	}
	return ledgerdomain.NormalizeAmount(sum.Div(decimal.NewFromInt(int64(len(days)))))
}

func project(avg decimal.Decimal, days int64) decimal.Decimal {
	return ledgerdomain.NormalizeAmount(avg.Mul(decimal.NewFromInt(days)))
}

// balances never fails the dashboard; an unreachable provider reads as zero.
func (s *Service) balances(ctx context.Context) domain.Balances {
	out := domain.Balances{
		PayPal: payoutdomain.ZeroBalance(),
		CashApp: domain.CashAppInfo{
			Cashtag:    s.cfg.Payouts.CashAppTag,
			Configured: s.cfg.Payouts.CashAppTag != "",
		},
	}
	provider, err := s.payouts.Get(paypal.Kind)
	if err != nil {
		return out
	}
	ctx, cancel := context.WithTimeout(ctx, balanceCallTimeout)
	defer cancel()
	balance, err := provider.Balance(ctx)
	if err != nil {
		s.log.Warn("reporting.balance.failed", zap.String("provider", paypal.Kind), zap.Error(err))
		return out
	}
	out.PayPal = balance
	return out
}

func (s *Service) engineStatuses(configs []ledgerdomain.EngineConfig) []domain.EngineStatus {
	byName := make(map[string]ledgerdomain.EngineConfig, len(configs))
	for _, cfg := range configs {
		byName[cfg.Engine] = cfg
	}

	out := make([]domain.EngineStatus, 0, s.registry.Len())
	for _, entry := range s.registry.All() {
		cfg, ok := byName[entry.Name]
		if !ok {
			cfg = ledgerdomain.EngineConfig{Engine: entry.Name, Enabled: true}
		}
		status := domain.EngineStatus{
			EngineConfig: cfg,
			Cadence:      entry.Cadence.String(),
		}
		if s.runState != nil {
			status.Running = s.runState.Running(entry.Name)
			if next, err := s.runState.NextRun(entry.Name); err == nil && !next.IsZero() {
				status.NextRun = &next
			}
		}
		out = append(out, status)
	}
	return out
}

func (s *Service) Earnings(ctx context.Context, days int) (domain.EarningsReport, error) {
	var out domain.EarningsReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Daily, err = s.ledger.DailyEarnings(gctx, days)
		return err
	})
	g.Go(func() (err error) {
		out.BySource, err = s.ledger.EarningsBySource(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Recent, err = s.ledger.RecentEarnings(gctx, reportRecent)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.EarningsReport{}, err
	}
	return out, nil
}

func (s *Service) Logs(ctx context.Context, filter ledgerdomain.LogFilter) ([]ledgerdomain.LogEntry, error) {
	return s.ledger.RecentLogs(ctx, filter)
}

func (s *Service) Content(ctx context.Context, filter ledgerdomain.ContentFilter) ([]ledgerdomain.Content, pagination.PageInfo, error) {
	return s.ledger.ListContent(ctx, filter)
}

func (s *Service) Withdrawals(ctx context.Context) ([]ledgerdomain.Withdrawal, error) {
	return s.ledger.ListWithdrawals(ctx)
}

func (s *Service) Health(context.Context) domain.Health {
	return domain.Health{
		Status:        "running",
		UptimeSeconds: s.uptime().Seconds(),
		Engines:       s.registry.Len(),
		Timestamp:     s.clock.Now(),
	}
}

// DailySummary builds the digest and records it in the activity log. It is
// also mailed or posted to Slack when either is configured.
func (s *Service) DailySummary(ctx context.Context) (domain.Summary, error) {
	now := s.clock.Now()
	total, err := s.ledger.TotalEarnings(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	today, err := s.ledger.EarningsSince(ctx, startOfDay(now))
	if err != nil {
		return domain.Summary{}, err
	}
	available, err := s.ledger.AvailableBalance(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	bySource, err := s.ledger.EarningsBySource(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	configs, err := s.ledger.ListEngineConfigs(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	errorLogs, err := s.ledger.RecentLogs(ctx, ledgerdomain.LogFilter{
		Level: ledgerdomain.LogLevelError,
		Limit: summaryErrorLimit,
	})
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		Date:          now.Format(time.DateOnly),
		Today:         today.StringFixed(2),
		Total:         total.StringFixed(2),
		Available:     available.StringFixed(2),
		ActiveEngines: countEnabled(configs),
	}
	for _, row := range bySource {
		summary.BySource = append(summary.BySource, domain.SummaryLine{
			Source: row.Source,
			Total:  row.Total.StringFixed(2),
			Count:  row.Count,
		})
	}
	cutoff := now.Add(-24 * time.Hour)
	for _, entry := range errorLogs {
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		line := entry.Message
		if entry.Engine != "" {
			line = entry.Engine + ": " + line
		}
		summary.Errors = append(summary.Errors, line)
	}

	if err := s.ledger.AppendLog(ctx, ledgerdomain.AppendLogRequest{
		Level:   ledgerdomain.LogLevelInfo,
		Message: fmt.Sprintf("Daily summary: $%s earned today, $%s total", summary.Today, summary.Total),
		Data: map[string]any{
			"date":           summary.Date,
			"available":      summary.Available,
			"active_engines": summary.ActiveEngines,
			"errors":         len(summary.Errors),
		},
	}); err != nil {
		s.log.Warn("reporting.summary.log_failed", zap.Error(err))
	}

	var errs []error
	if s.cfg.Email.Enabled() {
		err := s.mailer.SendTemplate(ctx, []string{s.cfg.Email.SummaryTo}, dailySummaryMail, email.TemplateData{Data: summary})
		if err != nil {
			errs = append(errs, fmt.Errorf("send daily summary: %w", err))
		} else {
			summary.Mailed = true
			s.log.Info("reporting.summary.sent", zap.String("date", summary.Date))
		}
	}
	if s.cfg.Slack.Enabled() {
		if err := s.notifier.PostMessage(ctx, s.cfg.Slack.Channel, summaryText(summary)); err != nil {
			errs = append(errs, fmt.Errorf("post daily summary: %w", err))
		} else {
			summary.Posted = true
			s.log.Info("reporting.summary.posted", zap.String("date", summary.Date))
		}
	}
	return summary, errors.Join(errs...)
}

func summaryText(summary domain.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily summary %s*\n", summary.Date)
	fmt.Fprintf(&b, "Today: $%s | Total: $%s | Available: $%s\n", summary.Today, summary.Total, summary.Available)
	fmt.Fprintf(&b, "Active engines: %d\n", summary.ActiveEngines)
	for _, line := range summary.BySource {
		fmt.Fprintf(&b, "- %s: $%s (%d)\n", line.Source, line.Total, line.Count)
	}
	if len(summary.Errors) > 0 {
		fmt.Fprintf(&b, "Errors (%d):\n", len(summary.Errors))
		for _, line := range summary.Errors {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Service) uptime() time.Duration {
	return s.clock.Now().Sub(s.startedAt)
}

func countEnabled(configs []ledgerdomain.EngineConfig) int {
	n := 0
	for _, cfg := range configs {
		if cfg.Enabled {
			n++
		}
	}
	return n
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
