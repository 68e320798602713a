package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEarning(ctx context.Context, db *gorm.DB, earning *domain.Earning) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO earnings (id, source, amount, currency, status, description, metadata, created_at, paid_out)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		earning.ID,
		earning.Source,
		earning.Amount,
		earning.Currency,
		earning.Status,
		earning.Description,
		earning.Metadata,
		earning.CreatedAt,
		earning.PaidOut,
	).Error
}

func (r *repo) InsertContent(ctx context.Context, db *gorm.DB, content *domain.Content) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO content (id, type, platform, title, url, status, views, earnings, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		content.ID,
		content.Type,
		content.Platform,
		content.Title,
		content.URL,
		content.Status,
		content.Views,
		content.Earnings,
		content.Metadata,
		content.CreatedAt,
		content.UpdatedAt,
	).Error
}

func (r *repo) IncrementContentMetrics(ctx context.Context, db *gorm.DB, id snowflake.ID, views int64, earnings decimal.Decimal, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE content SET views = views + ?, earnings = earnings + ?, updated_at = ? WHERE id = ?`,
		views,
		earnings,
		at,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertTask(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tasks (id, engine, task_type, status, result, earnings, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Engine,
		task.TaskType,
		task.Status,
		task.Result,
		task.Earnings,
		task.StartedAt,
		task.CompletedAt,
	).Error
}

func (r *repo) InsertLog(ctx context.Context, db *gorm.DB, entry *domain.LogEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO logs (id, level, engine, message, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Level,
		entry.Engine,
		entry.Message,
		entry.Data,
		entry.CreatedAt,
	).Error
}

func (r *repo) MarkEarningsPaidOut(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(`UPDATE earnings SET paid_out = ? WHERE id IN ?`, true, ids).Error
}

func (r *repo) InsertWithdrawal(ctx context.Context, db *gorm.DB, withdrawal *domain.Withdrawal) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO withdrawals (id, platform, amount, destination, status, transaction_id, requested_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		withdrawal.ID,
		withdrawal.Platform,
		withdrawal.Amount,
		withdrawal.Destination,
		withdrawal.Status,
		withdrawal.TransactionID,
		withdrawal.RequestedAt,
		withdrawal.CompletedAt,
	).Error
}

// TransitionWithdrawal moves the row to status `to` only while it is still in
// one of `from`. Zero rows affected means the row is missing or has moved on.
func (r *repo) TransitionWithdrawal(ctx context.Context, db *gorm.DB, id snowflake.ID, to domain.WithdrawalStatus, from []domain.WithdrawalStatus, transactionID string, completedAt *time.Time) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}
	updates := map[string]any{"status": to}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	res := db.WithContext(ctx).
		Model(&domain.Withdrawal{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repo) FindWithdrawal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Withdrawal, error) {
	var withdrawal domain.Withdrawal
	err := db.WithContext(ctx).Raw(
		`SELECT id, platform, amount, destination, status, transaction_id, requested_at, completed_at
		 FROM withdrawals WHERE id = ?`,
		id,
	).Scan(&withdrawal).Error
	if err != nil {
		return nil, err
	}
	if withdrawal.ID == 0 {
		return nil, nil
	}
	return &withdrawal, nil
}

func (r *repo) ListWithdrawals(ctx context.Context, db *gorm.DB) ([]domain.Withdrawal, error) {
	var withdrawals []domain.Withdrawal
	err := db.WithContext(ctx).Raw(
		`SELECT id, platform, amount, destination, status, transaction_id, requested_at, completed_at
		 FROM withdrawals ORDER BY requested_at DESC, id DESC`,
	).Scan(&withdrawals).Error
	return withdrawals, err
}

func (r *repo) InsertEngineConfigIfAbsent(ctx context.Context, db *gorm.DB, cfg *domain.EngineConfig) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "engine"}}, DoNothing: true}).
		Create(cfg).Error
}

func (r *repo) UpdateEngineEnabled(ctx context.Context, db *gorm.DB, engine string, enabled bool) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.EngineConfig{}).
		Where("engine = ?", engine).
		Update("enabled", enabled)
	return res.RowsAffected, res.Error
}

func (r *repo) FindEngineConfig(ctx context.Context, db *gorm.DB, engine string) (*domain.EngineConfig, error) {
	var cfg domain.EngineConfig
	err := db.WithContext(ctx).Raw(
		`SELECT engine, enabled, config, last_run, total_earned FROM engine_configs WHERE engine = ?`,
		engine,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.Engine == "" {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) ListEngineConfigs(ctx context.Context, db *gorm.DB) ([]domain.EngineConfig, error) {
	var cfgs []domain.EngineConfig
	err := db.WithContext(ctx).Raw(
		`SELECT engine, enabled, config, last_run, total_earned FROM engine_configs ORDER BY engine`,
	).Scan(&cfgs).Error
	return cfgs, err
}

// AccrueEngineRun is a single UPDATE so concurrent accruals never lose an
// increment.
func (r *repo) AccrueEngineRun(ctx context.Context, db *gorm.DB, engine string, earned decimal.Decimal, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.EngineConfig{}).
		Where("engine = ?", engine).
		Updates(map[string]any{
			"last_run":     at,
			"total_earned": gorm.Expr("total_earned + ?", earned),
		})
	return res.RowsAffected, res.Error
}

type totalRow struct {
	Total decimal.Decimal
}

func (r *repo) SumEarnings(ctx context.Context, db *gorm.DB, since *time.Time) (decimal.Decimal, error) {
	var row totalRow
	stmt := db.WithContext(ctx)
	var err error
	if since != nil {
		err = stmt.Raw(`SELECT COALESCE(SUM(amount), 0) AS total FROM earnings WHERE created_at >= ?`, *since).Scan(&row).Error
	} else {
		err = stmt.Raw(`SELECT COALESCE(SUM(amount), 0) AS total FROM earnings`).Scan(&row).Error
	}
	return row.Total, err
}

// SumWithdrawn counts every withdrawal that is not failed, including ones
// still in flight.
func (r *repo) SumWithdrawn(ctx context.Context, db *gorm.DB) (decimal.Decimal, error) {
	var row totalRow
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total FROM withdrawals WHERE status <> ?`,
		domain.WithdrawalStatusFailed,
	).Scan(&row).Error
	return row.Total, err
}

func (r *repo) EarningsBySource(ctx context.Context, db *gorm.DB) ([]domain.SourceTotal, error) {
	var rows []domain.SourceTotal
	err := db.WithContext(ctx).Raw(
		`SELECT source, SUM(amount) AS total, COUNT(*) AS count
		 FROM earnings GROUP BY source ORDER BY total DESC`,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) EarningsBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Earning, error) {
	var rows []domain.Earning
	err := db.WithContext(ctx).Raw(
		`SELECT id, source, amount, created_at FROM earnings
		 WHERE created_at >= ? AND created_at < ? ORDER BY created_at`,
		from,
		to,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) RecentEarnings(ctx context.Context, db *gorm.DB, limit int) ([]domain.Earning, error) {
	var rows []domain.Earning
	err := db.WithContext(ctx).Raw(
		`SELECT id, source, amount, currency, status, description, metadata, created_at, paid_out
		 FROM earnings ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) RecentLogs(ctx context.Context, db *gorm.DB, filter domain.LogFilter) ([]domain.LogEntry, error) {
	var rows []domain.LogEntry
	stmt := db.WithContext(ctx).Model(&domain.LogEntry{})
	if filter.Level != "" {
		stmt = stmt.Where("level = ?", filter.Level)
	}
	if filter.Engine != "" {
		stmt = stmt.Where("engine = ?", filter.Engine)
	}
	err := stmt.Order("created_at DESC").Order("id DESC").Limit(filter.Limit).Find(&rows).Error
	return rows, err
}

func (r *repo) ContentStats(ctx context.Context, db *gorm.DB) ([]domain.PlatformStats, error) {
	var rows []domain.PlatformStats
	err := db.WithContext(ctx).Raw(
		`SELECT platform, COUNT(*) AS count, COALESCE(SUM(views), 0) AS total_views,
		        COALESCE(SUM(earnings), 0) AS total_earnings
		 FROM content GROUP BY platform ORDER BY count DESC`,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) ListContent(ctx context.Context, db *gorm.DB, filter domain.ContentFilter, beforeID snowflake.ID, limit int) ([]domain.Content, error) {
	var rows []domain.Content
	stmt := db.WithContext(ctx).Model(&domain.Content{})
	if filter.Platform != "" {
		stmt = stmt.Where("platform = ?", filter.Platform)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.Since != nil {
		stmt = stmt.Where("created_at >= ?", *filter.Since)
	}
	if beforeID != 0 {
		stmt = stmt.Where("id < ?", beforeID)
	}
	err := stmt.Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repo) CountTasks(ctx context.Context, db *gorm.DB, filter domain.TaskCountFilter) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).Model(&domain.Task{})
	if filter.Engine != "" {
		stmt = stmt.Where("engine = ?", filter.Engine)
	}
	if filter.TaskType != "" {
		stmt = stmt.Where("task_type = ?", filter.TaskType)
	}
	if filter.Since != nil {
		stmt = stmt.Where("started_at >= ?", *filter.Since)
	}
	err := stmt.Count(&count).Error
	return count, err
}
