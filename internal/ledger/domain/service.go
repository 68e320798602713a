package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/pkg/db/pagination"
	"gorm.io/gorm"
)

type RecordEarningRequest struct {
	Source      string
	Amount      decimal.Decimal
	Description string
	Metadata    map[string]any
}

type RecordContentRequest struct {
	Type     string
	Platform string
	Title    string
	URL      string
	Status   ContentStatus
	Metadata map[string]any
}

type RecordTaskRequest struct {
	Engine   string
	TaskType string
	Status   TaskStatus
	Result   string
	Earnings decimal.Decimal
}

type AppendLogRequest struct {
	Level   LogLevel
	Engine  string
	Message string
	Data    map[string]any
}

type LogFilter struct {
	Level  LogLevel
	Engine string
	Limit  int
}

type ContentFilter struct {
	Platform string
	Type     string
	Since    *time.Time
	pagination.Pagination
}

type TaskCountFilter struct {
	Engine   string
	TaskType string
	Since    *time.Time
}

// Service is the ledger store. Every mutation is atomic for its own record.
type Service interface {
	RecordEarning(ctx context.Context, req RecordEarningRequest) (Earning, error)
	RecordContent(ctx context.Context, req RecordContentRequest) (Content, error)
	IncrementContentMetrics(ctx context.Context, id snowflake.ID, views int64, earnings decimal.Decimal) error
	RecordTask(ctx context.Context, req RecordTaskRequest) (Task, error)
	AppendLog(ctx context.Context, req AppendLogRequest) error
	MarkEarningsPaidOut(ctx context.Context, ids []snowflake.ID) error

	RecordWithdrawal(ctx context.Context, platform string, amount decimal.Decimal, destination string) (Withdrawal, error)
	UpdateWithdrawalStatus(ctx context.Context, id snowflake.ID, status WithdrawalStatus, transactionID string) (Withdrawal, error)
	GetWithdrawal(ctx context.Context, id snowflake.ID) (Withdrawal, error)
	ListWithdrawals(ctx context.Context) ([]Withdrawal, error)

	UpsertEngineConfig(ctx context.Context, engine string) error
	SetEngineEnabled(ctx context.Context, engine string, enabled bool) error
	GetEngineConfig(ctx context.Context, engine string) (EngineConfig, error)
	ListEngineConfigs(ctx context.Context) ([]EngineConfig, error)
	AccrueEngineRun(ctx context.Context, engine string, earned decimal.Decimal, at time.Time) error

	TotalEarnings(ctx context.Context) (decimal.Decimal, error)
	EarningsSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	EarningsBySource(ctx context.Context) ([]SourceTotal, error)
	DailyEarnings(ctx context.Context, days int) ([]DailyTotal, error)
	RecentEarnings(ctx context.Context, limit int) ([]Earning, error)
	RecentLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error)
	ContentStats(ctx context.Context) ([]PlatformStats, error)
	ListContent(ctx context.Context, filter ContentFilter) ([]Content, pagination.PageInfo, error)
	CountTasks(ctx context.Context, filter TaskCountFilter) (int64, error)
	TotalWithdrawn(ctx context.Context) (decimal.Decimal, error)
	AvailableBalance(ctx context.Context) (decimal.Decimal, error)
}

// Repository runs the SQL behind Service. Callers pass the handle so a
// transaction can span several calls.
type Repository interface {
	InsertEarning(ctx context.Context, db *gorm.DB, earning *Earning) error
	InsertContent(ctx context.Context, db *gorm.DB, content *Content) error
	IncrementContentMetrics(ctx context.Context, db *gorm.DB, id snowflake.ID, views int64, earnings decimal.Decimal, at time.Time) (int64, error)
	InsertTask(ctx context.Context, db *gorm.DB, task *Task) error
	InsertLog(ctx context.Context, db *gorm.DB, entry *LogEntry) error
	MarkEarningsPaidOut(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error

	InsertWithdrawal(ctx context.Context, db *gorm.DB, withdrawal *Withdrawal) error
	TransitionWithdrawal(ctx context.Context, db *gorm.DB, id snowflake.ID, to WithdrawalStatus, from []WithdrawalStatus, transactionID string, completedAt *time.Time) (int64, error)
	FindWithdrawal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Withdrawal, error)
	ListWithdrawals(ctx context.Context, db *gorm.DB) ([]Withdrawal, error)

	InsertEngineConfigIfAbsent(ctx context.Context, db *gorm.DB, cfg *EngineConfig) error
	UpdateEngineEnabled(ctx context.Context, db *gorm.DB, engine string, enabled bool) (int64, error)
	FindEngineConfig(ctx context.Context, db *gorm.DB, engine string) (*EngineConfig, error)
	ListEngineConfigs(ctx context.Context, db *gorm.DB) ([]EngineConfig, error)
	AccrueEngineRun(ctx context.Context, db *gorm.DB, engine string, earned decimal.Decimal, at time.Time) (int64, error)

	SumEarnings(ctx context.Context, db *gorm.DB, since *time.Time) (decimal.Decimal, error)
	SumWithdrawn(ctx context.Context, db *gorm.DB) (decimal.Decimal, error)
	EarningsBySource(ctx context.Context, db *gorm.DB) ([]SourceTotal, error)
	EarningsBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]Earning, error)
	RecentEarnings(ctx context.Context, db *gorm.DB, limit int) ([]Earning, error)
	RecentLogs(ctx context.Context, db *gorm.DB, filter LogFilter) ([]LogEntry, error)
	ContentStats(ctx context.Context, db *gorm.DB) ([]PlatformStats, error)
	ListContent(ctx context.Context, db *gorm.DB, filter ContentFilter, beforeID snowflake.ID, limit int) ([]Content, error)
	CountTasks(ctx context.Context, db *gorm.DB, filter TaskCountFilter) (int64, error)
}
