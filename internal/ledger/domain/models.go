package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const DefaultCurrency = "USD"

type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusConfirmed EarningStatus = "confirmed"
)

// Earning is immutable once written, except for PaidOut.
type Earning struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Source      string            `gorm:"type:varchar(64);not null;index" json:"source"`
	Amount      decimal.Decimal   `gorm:"type:numeric(20,6);not null" json:"amount"`
	Currency    string            `gorm:"type:varchar(8);not null" json:"currency"`
	Status      EarningStatus     `gorm:"type:varchar(32);not null" json:"status"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;index" json:"created_at"`
	PaidOut     bool              `gorm:"not null;default:false" json:"paid_out"`
}

func (Earning) TableName() string { return "earnings" }

type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusQueued    ContentStatus = "queued"
	ContentStatusSaved     ContentStatus = "saved"
)

// Content is a produced artifact. Views and Earnings grow over time.
type Content struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Type      string            `gorm:"type:varchar(64);not null" json:"type"`
	Platform  string            `gorm:"type:varchar(64);not null;index" json:"platform"`
	Title     string            `gorm:"type:text" json:"title"`
	URL       string            `gorm:"column:url;type:text" json:"url"`
	Status    ContentStatus     `gorm:"type:varchar(32);not null" json:"status"`
	Views     int64             `gorm:"not null;default:0" json:"views"`
	Earnings  decimal.Decimal   `gorm:"type:numeric(20,6);not null;default:0" json:"earnings"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Content) TableName() string { return "content" }

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

type Task struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Engine      string          `gorm:"type:varchar(64);not null;index" json:"engine"`
	TaskType    string          `gorm:"type:varchar(64);not null" json:"task_type"`
	Status      TaskStatus      `gorm:"type:varchar(32);not null" json:"status"`
	Result      string          `gorm:"type:text" json:"result"`
	Earnings    decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"earnings"`
	StartedAt   time.Time       `gorm:"not null;index" json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func (Task) TableName() string { return "tasks" }

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

type LogEntry struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Level     LogLevel          `gorm:"type:varchar(16);not null;index" json:"level"`
	Engine    string            `gorm:"type:varchar(64);index" json:"engine"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Data      datatypes.JSONMap `json:"data,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
}

func (LogEntry) TableName() string { return "logs" }

type WithdrawalStatus string

const (
	WithdrawalStatusPending       WithdrawalStatus = "pending"
	WithdrawalStatusProcessing    WithdrawalStatus = "processing"
	WithdrawalStatusPendingManual WithdrawalStatus = "pending_manual"
	WithdrawalStatusCompleted     WithdrawalStatus = "completed"
	WithdrawalStatusFailed        WithdrawalStatus = "failed"
)

// withdrawalPredecessors lists, for each status, the statuses it may be
// entered from.
var withdrawalPredecessors = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusProcessing:    {WithdrawalStatusPending},
	WithdrawalStatusPendingManual: {WithdrawalStatusPending},
	WithdrawalStatusCompleted:     {WithdrawalStatusProcessing, WithdrawalStatusPendingManual},
	WithdrawalStatusFailed:        {WithdrawalStatusPending, WithdrawalStatusProcessing, WithdrawalStatusPendingManual},
}

func (s WithdrawalStatus) Valid() bool {
	_, ok := withdrawalPredecessors[s]
	return ok || s == WithdrawalStatusPending
}

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusFailed
}

// Predecessors returns the statuses a withdrawal must be in to move to s.
func (s WithdrawalStatus) Predecessors() []WithdrawalStatus {
	return withdrawalPredecessors[s]
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to WithdrawalStatus) bool {
	for _, prev := range withdrawalPredecessors[to] {
		if prev == from {
			return true
		}
	}
	return false
}

type Withdrawal struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	Platform      string           `gorm:"type:varchar(32);not null" json:"platform"`
	Amount        decimal.Decimal  `gorm:"type:numeric(20,6);not null" json:"amount"`
	Destination   string           `gorm:"type:text" json:"destination"`
	Status        WithdrawalStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	TransactionID string           `gorm:"type:varchar(128)" json:"transaction_id,omitempty"`
	RequestedAt   time.Time        `gorm:"not null;index" json:"requested_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

func (Withdrawal) TableName() string { return "withdrawals" }

type EngineConfig struct {
	Engine      string            `gorm:"primaryKey;type:varchar(64)" json:"engine"`
	Enabled     bool              `gorm:"not null;default:true" json:"enabled"`
	Config      datatypes.JSONMap `json:"config,omitempty"`
	LastRun     *time.Time        `json:"last_run,omitempty"`
	TotalEarned decimal.Decimal   `gorm:"type:numeric(20,6);not null;default:0" json:"total_earned"`
}

func (EngineConfig) TableName() string { return "engine_configs" }

// SourceTotal aggregates earnings per source.
type SourceTotal struct {
	Source string          `json:"source"`
	Total  decimal.Decimal `json:"total"`
	Count  int64           `json:"count"`
}

// DailyTotal is the sum of earnings for one UTC calendar day.
type DailyTotal struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// PlatformStats aggregates content per platform.
type PlatformStats struct {
	Platform      string          `json:"platform"`
	Count         int64           `json:"count"`
	TotalViews    int64           `json:"total_views"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

// Models lists every table the ledger owns, in creation order.
func Models() []any {
	return []any{
		&Earning{},
		&Content{},
		&Task{},
		&LogEntry{},
		&Withdrawal{},
		&EngineConfig{},
	}
}
