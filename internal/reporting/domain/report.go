package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	payoutdomain "github.com/smallbiznis/incomeengine/internal/payout/domain"
	"github.com/smallbiznis/incomeengine/pkg/db/pagination"
)

type Overview struct {
	TotalEarnings     decimal.Decimal `json:"total_earnings"`
	TodayEarnings     decimal.Decimal `json:"today_earnings"`
	DailyAverage      decimal.Decimal `json:"daily_average"`
	WeeklyProjection  decimal.Decimal `json:"weekly_projection"`
	MonthlyProjection decimal.Decimal `json:"monthly_projection"`
	YearlyProjection  decimal.Decimal `json:"yearly_projection"`
	TotalWithdrawn    decimal.Decimal `json:"total_withdrawn"`
	AvailableBalance  decimal.Decimal `json:"available_balance"`
}

// EngineStatus is an engine's persisted config plus what the scheduler
// knows about it right now.
type EngineStatus struct {
	ledgerdomain.EngineConfig
	Cadence string     `json:"cadence"`
	NextRun *time.Time `json:"next_run,omitempty"`
	Running bool       `json:"running"`
}

type CashAppInfo struct {
	Cashtag    string `json:"cashtag"`
	Configured bool   `json:"configured"`
}

type Balances struct {
	PayPal  payoutdomain.Balance `json:"paypal"`
	CashApp CashAppInfo          `json:"cashapp"`
}

type SystemStatus struct {
	UptimeSeconds    float64   `json:"uptime_seconds"`
	LastUpdated      time.Time `json:"last_updated"`
	ActiveEngines    int       `json:"active_engines"`
	TotalEngines     int       `json:"total_engines"`
	SchedulerEnabled bool      `json:"scheduler_enabled"`
}

type Dashboard struct {
	Overview         Overview                     `json:"overview"`
	EarningsBySource []ledgerdomain.SourceTotal   `json:"earnings_by_source"`
	DailyEarnings    []ledgerdomain.DailyTotal    `json:"daily_earnings"`
	RecentEarnings   []ledgerdomain.Earning       `json:"recent_earnings"`
	Engines          []EngineStatus               `json:"engines"`
	ContentStats     []ledgerdomain.PlatformStats `json:"content_stats"`
	Withdrawals      []ledgerdomain.Withdrawal    `json:"withdrawals"`
	Balances         Balances                     `json:"balances"`
	SystemStatus     SystemStatus                 `json:"system_status"`
}

type EarningsReport struct {
	Daily    []ledgerdomain.DailyTotal  `json:"daily"`
	BySource []ledgerdomain.SourceTotal `json:"by_source"`
	Recent   []ledgerdomain.Earning     `json:"recent"`
}

type Health struct {
	Status        string    `json:"status"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Engines       int       `json:"engines"`
	Timestamp     time.Time `json:"timestamp"`
}

type SummaryLine struct {
	Source string
	Total  string
	Count  int64
}

// Summary is the daily digest; amounts are pre-formatted for the template.
type Summary struct {
	Date          string
	Today         string
	Total         string
	Available     string
	ActiveEngines int
	BySource      []SummaryLine
	Errors        []string
	Mailed        bool
	Posted        bool
}

// Service is a read-only view over the ledger for the dashboard and the
// daily summary. It applies no business rules of its own.
type Service interface {
	Dashboard(ctx context.Context) (Dashboard, error)
	Earnings(ctx context.Context, days int) (EarningsReport, error)
	Logs(ctx context.Context, filter ledgerdomain.LogFilter) ([]ledgerdomain.LogEntry, error)
	Content(ctx context.Context, filter ledgerdomain.ContentFilter) ([]ledgerdomain.Content, pagination.PageInfo, error)
	Withdrawals(ctx context.Context) ([]ledgerdomain.Withdrawal, error)
	Health(ctx context.Context) Health
	DailySummary(ctx context.Context) (Summary, error)
}
