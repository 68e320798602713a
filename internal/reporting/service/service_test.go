package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/cadence"
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/config"
	enginedomain "github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/engine/registry"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/ledger/ledgertest"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters/cashapp"
	payoutdomain "github.com/smallbiznis/incomeengine/internal/payout/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/email"
	"github.com/smallbiznis/incomeengine/internal/reporting/domain"
	"github.com/smallbiznis/incomeengine/internal/reporting/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakePayPal struct {
	balance payoutdomain.Balance
	err     error
}

func (f *fakePayPal) Kind() string { return "paypal" }

func (f *fakePayPal) Destination(req string) string { return req }

func (f *fakePayPal) Balance(context.Context) (payoutdomain.Balance, error) {
	return f.balance, f.err
}

func (f *fakePayPal) Payout(context.Context, decimal.Decimal, string) (payoutdomain.PayoutResult, error) {
	return payoutdomain.PayoutResult{}, errors.New("not used")
}

type fakeRunState struct {
	running map[string]bool
	next    time.Time
}

func (f *fakeRunState) Running(name string) bool { return f.running[name] }

func (f *fakeRunState) NextRun(string) (time.Time, error) { return f.next, nil }

type sentMail struct {
	to       []string
	template string
	data     email.TemplateData
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(context.Context, []string, string, string) error { return f.err }

func (f *fakeMailer) SendTemplate(_ context.Context, to []string, name string, data email.TemplateData) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, template: name, data: data})
	return nil
}

type postedMessage struct {
	channel string
	text    string
}

type fakeNotifier struct {
	posted []postedMessage
	err    error
}

func (f *fakeNotifier) PostMessage(_ context.Context, channel, message string) error {
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, postedMessage{channel: channel, text: message})
	return nil
}

type fixture struct {
	svc      domain.Service
	ledger   ledgerdomain.Service
	db       *gorm.DB
	clk      *clock.FakeClock
	mailer   *fakeMailer
	notifier *fakeNotifier
}

type fixtureOptions struct {
	paypal   *fakePayPal
	runState *fakeRunState
	cfg      config.Config
}

func newFixture(t *testing.T, opts fixtureOptions) fixture {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC))
	ledger, db := ledgertest.NewService(t, clk)
	log := zaptest.NewLogger(t)

	reg, err := registry.New(registry.Params{
		Registrations: []enginedomain.Registration{
			{Engine: noopEngine("content-writer"), Cadence: cadence.MustParse("0 */6 * * *")},
			{Engine: noopEngine("micro-tasks"), Cadence: cadence.MustParse("0 */4 * * *")},
		},
		Ledger: ledger,
		Log:    log,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Init(context.Background()))

	paypal := opts.paypal
	if paypal == nil {
		paypal = &fakePayPal{balance: payoutdomain.ZeroBalance()}
	}
	mailer := &fakeMailer{}
	notifier := &fakeNotifier{}
	params := service.Params{
		Ledger:   ledger,
		Registry: reg,
		Payouts:  adapters.NewRegistry(paypal, cashapp.New(opts.cfg.Payouts.CashAppTag)),
		Mailer:   mailer,
		Notifier: notifier,
		Config:   opts.cfg,
		Clock:    clk,
		Log:      log,
	}
	if opts.runState != nil {
		params.RunState = opts.runState
	}
	return fixture{
		svc:      service.New(params),
		ledger:   ledger,
		db:       db,
		clk:      clk,
		mailer:   mailer,
		notifier: notifier,
	}
}

func noopEngine(name string) enginedomain.Engine {
	return enginedomain.EngineFunc{
		EngineName: name,
		Fn:         func(context.Context) (decimal.Decimal, error) { return decimal.Zero, nil },
	}
}

func (f fixture) earn(t *testing.T, amount string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	earning, err := f.ledger.RecordEarning(ctx, ledgerdomain.RecordEarningRequest{
		Source: "micro-tasks",
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	require.NoError(t, ledgertest.NewTimeShifter(f.db).SetEarningCreatedAt(ctx, earning.ID, at))
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func TestDashboardOverviewAndProjections(t *testing.T) {
	ctx := context.Background()
	next := time.Date(2024, 5, 8, 16, 0, 0, 0, time.UTC)
	f := newFixture(t, fixtureOptions{
		paypal:   &fakePayPal{balance: payoutdomain.Balance{Available: decimal.RequireFromString("12.34"), Pending: decimal.Zero, Currency: "USD"}},
		runState: &fakeRunState{running: map[string]bool{"micro-tasks": true}, next: next},
		cfg: config.Config{
			SchedulerEnabled: true,
			Payouts:          config.PayoutsConfig{CashAppTag: "$owner"},
		},
	})
	now := f.clk.Now()
	f.earn(t, "7", now.Add(-time.Hour))
	f.earn(t, "14", now.AddDate(0, 0, -3))
	f.earn(t, "100", now.AddDate(0, 0, -20))
	_, err := f.ledger.RecordWithdrawal(ctx, "cashapp", decimal.NewFromInt(10), "$owner")
	require.NoError(t, err)
	require.NoError(t, f.ledger.SetEngineEnabled(ctx, "content-writer", false))

	dash, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)

	assertAmount(t, "121.00", dash.Overview.TotalEarnings)
	assertAmount(t, "7.00", dash.Overview.TodayEarnings)
	assertAmount(t, "3.00", dash.Overview.DailyAverage)
	assertAmount(t, "21.00", dash.Overview.WeeklyProjection)
	assertAmount(t, "90.00", dash.Overview.MonthlyProjection)
	assertAmount(t, "1095.00", dash.Overview.YearlyProjection)
	assertAmount(t, "10.00", dash.Overview.TotalWithdrawn)
	assertAmount(t, "111.00", dash.Overview.AvailableBalance)

	assert.Len(t, dash.DailyEarnings, 30)
	assert.Len(t, dash.RecentEarnings, 3)
	assert.Len(t, dash.Withdrawals, 1)
	require.Len(t, dash.EarningsBySource, 1)
	assert.Equal(t, int64(3), dash.EarningsBySource[0].Count)

	require.Len(t, dash.Engines, 2)
	assert.Equal(t, "content-writer", dash.Engines[0].Engine)
	assert.False(t, dash.Engines[0].Enabled)
	assert.Equal(t, "0 */6 * * *", dash.Engines[0].Cadence)
	assert.True(t, dash.Engines[1].Running)
	require.NotNil(t, dash.Engines[1].NextRun)
	assert.Equal(t, next, *dash.Engines[1].NextRun)

	assertAmount(t, "12.34", dash.Balances.PayPal.Available)
	assert.Equal(t, "$owner", dash.Balances.CashApp.Cashtag)
	assert.True(t, dash.Balances.CashApp.Configured)

	assert.Equal(t, 1, dash.SystemStatus.ActiveEngines)
	assert.Equal(t, 2, dash.SystemStatus.TotalEngines)
	assert.True(t, dash.SystemStatus.SchedulerEnabled)
}

func TestDashboardSurvivesBalanceFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		paypal: &fakePayPal{err: errors.New("paypal down")},
	})

	dash, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.True(t, dash.Balances.PayPal.Available.IsZero())
	assert.Equal(t, "USD", dash.Balances.PayPal.Currency)
	assert.False(t, dash.Balances.CashApp.Configured)
	assertAmount(t, "0.00", dash.Overview.WeeklyProjection)
}

func TestEarningsReport(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.earn(t, "2.5", f.clk.Now())

	report, err := f.svc.Earnings(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, report.Daily, 7)
	assertAmount(t, "2.50", report.Daily[6].Total)
	assert.Len(t, report.Recent, 1)
	assert.Len(t, report.BySource, 1)
}

func TestDailySummaryMailsAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{
		cfg: config.Config{Email: config.EmailConfig{SMTPHost: "smtp.example.com", SummaryTo: "owner@example.com"}},
	})
	require.NoError(t, f.ledger.AppendLog(ctx, ledgerdomain.AppendLogRequest{
		Level: ledgerdomain.LogLevelError, Engine: "micro-tasks", Message: "stale failure",
	}))
	f.clk.Advance(25 * time.Hour)
	require.NoError(t, f.ledger.AppendLog(ctx, ledgerdomain.AppendLogRequest{
		Level: ledgerdomain.LogLevelError, Engine: "content-writer", Message: "Run failed: boom",
	}))
	f.earn(t, "4.2", f.clk.Now())

	summary, err := f.svc.DailySummary(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Mailed)
	assert.Equal(t, "2024-05-09", summary.Date)
	assert.Equal(t, "4.20", summary.Today)
	assert.Equal(t, 2, summary.ActiveEngines)
	assert.Equal(t, []string{"content-writer: Run failed: boom"}, summary.Errors)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []string{"owner@example.com"}, f.mailer.sent[0].to)
	assert.Equal(t, "daily_summary", f.mailer.sent[0].template)

	logs, err := f.ledger.RecentLogs(ctx, ledgerdomain.LogFilter{Level: ledgerdomain.LogLevelInfo})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "Daily summary")
}

func TestDailySummaryWithoutSMTP(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	summary, err := f.svc.DailySummary(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Mailed)
	assert.Empty(t, f.mailer.sent)
	assert.Equal(t, "0.00", summary.Total)
}

func TestDailySummaryMailFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		cfg: config.Config{Email: config.EmailConfig{SMTPHost: "smtp.example.com", SummaryTo: "owner@example.com"}},
	})
	f.mailer.err = errors.New("connection refused")

	summary, err := f.svc.DailySummary(context.Background())
	require.Error(t, err)
	assert.False(t, summary.Mailed)
}

func TestDailySummaryPostsToSlack(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		cfg: config.Config{Slack: config.SlackConfig{WebhookURL: "https://hooks.example.com/x", Channel: "#income"}},
	})
	f.earn(t, "3", f.clk.Now())

	summary, err := f.svc.DailySummary(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Posted)
	assert.False(t, summary.Mailed)

	require.Len(t, f.notifier.posted, 1)
	assert.Equal(t, "#income", f.notifier.posted[0].channel)
	assert.Contains(t, f.notifier.posted[0].text, "Today: $3.00")
	assert.Contains(t, f.notifier.posted[0].text, "- micro-tasks: $3.00 (1)")
}

func TestDailySummaryMailFailureStillPosts(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		cfg: config.Config{
			Email: config.EmailConfig{SMTPHost: "smtp.example.com", SummaryTo: "owner@example.com"},
			Slack: config.SlackConfig{WebhookURL: "https://hooks.example.com/x"},
		},
	})
	mailErr := errors.New("connection refused")
	f.mailer.err = mailErr

	summary, err := f.svc.DailySummary(context.Background())
	require.ErrorIs(t, err, mailErr)
	assert.False(t, summary.Mailed)
	assert.True(t, summary.Posted)
	assert.Len(t, f.notifier.posted, 1)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.clk.Advance(time.Minute)

	health := f.svc.Health(context.Background())
	assert.Equal(t, "running", health.Status)
	assert.Equal(t, 2, health.Engines)
	assert.Equal(t, float64(60), health.UptimeSeconds)
}
