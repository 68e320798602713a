package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/incomeengine/internal/observability/metrics"
	"github.com/smallbiznis/incomeengine/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
	maxDailyWindow     = 366
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) RecordEarning(ctx context.Context, req domain.RecordEarningRequest) (domain.Earning, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return domain.Earning{}, domain.ErrInvalidSource
	}

	earning := domain.Earning{
		ID:          s.genID.Generate(),
		Source:      source,
		Amount:      domain.NormalizeAmount(req.Amount),
		Currency:    domain.DefaultCurrency,
		Status:      domain.EarningStatusPending,
		Description: strings.TrimSpace(req.Description),
		Metadata:    jsonMap(req.Metadata),
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.repo.InsertEarning(ctx, s.db, &earning); err != nil {
		return domain.Earning{}, fmt.Errorf("insert earning: %w", err)
	}
	s.metrics.RecordEarning(ctx, source)
	s.log.Debug("earning recorded",
		zap.String("earning_id", earning.ID.String()),
		zap.String("source", source),
		zap.String("amount", earning.Amount.String()),
	)
	return earning, nil
}

func (s *Service) RecordContent(ctx context.Context, req domain.RecordContentRequest) (domain.Content, error) {
	contentType := strings.TrimSpace(req.Type)
	platform := strings.TrimSpace(req.Platform)
	if contentType == "" || platform == "" {
		return domain.Content{}, domain.ErrInvalidContent
	}
	status := req.Status
	if status == "" {
		status = domain.ContentStatusDraft
	}

	now := s.clock.Now().UTC()
	content := domain.Content{
		ID:        s.genID.Generate(),
		Type:      contentType,
		Platform:  platform,
		Title:     strings.TrimSpace(req.Title),
		URL:       strings.TrimSpace(req.URL),
		Status:    status,
		Earnings:  decimal.Zero,
		Metadata:  jsonMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertContent(ctx, s.db, &content); err != nil {
		return domain.Content{}, fmt.Errorf("insert content: %w", err)
	}
	s.metrics.RecordContent(ctx, platform)
	return content, nil
}

func (s *Service) IncrementContentMetrics(ctx context.Context, id snowflake.ID, views int64, earnings decimal.Decimal) error {
	if views < 0 {
		return domain.ErrInvalidContent
	}
	affected, err := s.repo.IncrementContentMetrics(ctx, s.db, id, views, domain.NormalizeAmount(earnings), s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment content metrics: %w", err)
	}
	if affected == 0 {
		return domain.ErrContentNotFound
	}
	return nil
}

func (s *Service) RecordTask(ctx context.Context, req domain.RecordTaskRequest) (domain.Task, error) {
	engine := strings.TrimSpace(req.Engine)
	taskType := strings.TrimSpace(req.TaskType)
	if engine == "" || taskType == "" {
		return domain.Task{}, domain.ErrInvalidTask
	}
	status := req.Status
	if status == "" {
		status = domain.TaskStatusCompleted
	}

	now := s.clock.Now().UTC()
	task := domain.Task{
		ID:        s.genID.Generate(),
		Engine:    engine,
		TaskType:  taskType,
		Status:    status,
		Result:    req.Result,
		Earnings:  domain.NormalizeAmount(req.Earnings),
		StartedAt: now,
	}
	if status != domain.TaskStatusPending {
		task.CompletedAt = &now
	}
	if err := s.repo.InsertTask(ctx, s.db, &task); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *Service) AppendLog(ctx context.Context, req domain.AppendLogRequest) error {
	if !req.Level.Valid() {
		return domain.ErrInvalidLogLevel
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return domain.ErrInvalidLogMessage
	}
	entry := domain.LogEntry{
		ID:        s.genID.Generate(),
		Level:     req.Level,
		Engine:    strings.TrimSpace(req.Engine),
		Message:   message,
		Data:      jsonMap(req.Data),
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.InsertLog(ctx, s.db, &entry); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (s *Service) MarkEarningsPaidOut(ctx context.Context, ids []snowflake.ID) error {
	return s.repo.MarkEarningsPaidOut(ctx, s.db, ids)
}

func (s *Service) RecordWithdrawal(ctx context.Context, platform string, amount decimal.Decimal, destination string) (domain.Withdrawal, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return domain.Withdrawal{}, domain.ErrInvalidPlatform
	}
	amount = domain.NormalizeAmount(amount)
	if !amount.IsPositive() {
		return domain.Withdrawal{}, domain.ErrInvalidAmount
	}

	withdrawal := domain.Withdrawal{
		ID:          s.genID.Generate(),
		Platform:    platform,
		Amount:      amount,
		Destination: strings.TrimSpace(destination),
		Status:      domain.WithdrawalStatusPending,
		RequestedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.InsertWithdrawal(ctx, s.db, &withdrawal); err != nil {
		return domain.Withdrawal{}, fmt.Errorf("insert withdrawal: %w", err)
	}
	return withdrawal, nil
}

func (s *Service) UpdateWithdrawalStatus(ctx context.Context, id snowflake.ID, status domain.WithdrawalStatus, transactionID string) (domain.Withdrawal, error) {
	if status == domain.WithdrawalStatusPending || !status.Valid() {
		return domain.Withdrawal{}, domain.ErrInvalidWithdrawalStatus
	}

	var completedAt *time.Time
	if status.Terminal() {
		now := s.clock.Now().UTC()
		completedAt = &now
	}

	var updated domain.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.repo.TransitionWithdrawal(ctx, tx, id, status, status.Predecessors(), strings.TrimSpace(transactionID), completedAt)
		if err != nil {
			return err
		}
		current, err := s.repo.FindWithdrawal(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrWithdrawalNotFound
		}
		if affected == 0 {
			s.log.Warn("withdrawal status transition rejected",
				zap.String("withdrawal_id", id.String()),
				zap.String("from", string(current.Status)),
				zap.String("to", string(status)),
			)
			return domain.ErrInvalidStatusTransition
		}
		updated = *current
		return nil
	})
	if err != nil {
		return domain.Withdrawal{}, err
	}
	s.metrics.RecordWithdrawal(ctx, updated.Platform, string(updated.Status))
	return normalizeWithdrawal(updated), nil
}

func (s *Service) GetWithdrawal(ctx context.Context, id snowflake.ID) (domain.Withdrawal, error) {
	withdrawal, err := s.repo.FindWithdrawal(ctx, s.db, id)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if withdrawal == nil {
		return domain.Withdrawal{}, domain.ErrWithdrawalNotFound
	}
	return normalizeWithdrawal(*withdrawal), nil
}

func (s *Service) ListWithdrawals(ctx context.Context) ([]domain.Withdrawal, error) {
	rows, err := s.repo.ListWithdrawals(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = normalizeWithdrawal(rows[i])
	}
	return rows, nil
}

// UpsertEngineConfig creates the row for engine if missing and never touches
// an existing one.
func (s *Service) UpsertEngineConfig(ctx context.Context, engine string) error {
	engine = strings.TrimSpace(engine)
	if engine == "" {
		return domain.ErrInvalidEngineName
	}
	cfg := domain.EngineConfig{
		Engine:      engine,
		Enabled:     true,
		Config:      datatypes.JSONMap{},
		TotalEarned: decimal.Zero,
	}
	if err := s.repo.InsertEngineConfigIfAbsent(ctx, s.db, &cfg); err != nil {
		return fmt.Errorf("upsert engine config %s: %w", engine, err)
	}
	return nil
}

func (s *Service) SetEngineEnabled(ctx context.Context, engine string, enabled bool) error {
	affected, err := s.repo.UpdateEngineEnabled(ctx, s.db, strings.TrimSpace(engine), enabled)
	if err != nil {
		return fmt.Errorf("set engine enabled: %w", err)
	}
	if affected == 0 {
		// mysql reports zero rows when the value did not change
		if _, err := s.GetEngineConfig(ctx, engine); err != nil {
			return err
		}
	}
	s.log.Info("engine toggled", zap.String("engine", engine), zap.Bool("enabled", enabled))
	return nil
}

func (s *Service) GetEngineConfig(ctx context.Context, engine string) (domain.EngineConfig, error) {
	cfg, err := s.repo.FindEngineConfig(ctx, s.db, strings.TrimSpace(engine))
	if err != nil {
		return domain.EngineConfig{}, err
	}
	if cfg == nil {
		return domain.EngineConfig{}, domain.ErrEngineConfigNotFound
	}
	cfg.TotalEarned = domain.NormalizeAmount(cfg.TotalEarned)
	return *cfg, nil
}

func (s *Service) ListEngineConfigs(ctx context.Context) ([]domain.EngineConfig, error) {
	cfgs, err := s.repo.ListEngineConfigs(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range cfgs {
		cfgs[i].TotalEarned = domain.NormalizeAmount(cfgs[i].TotalEarned)
	}
	return cfgs, nil
}

func (s *Service) AccrueEngineRun(ctx context.Context, engine string, earned decimal.Decimal, at time.Time) error {
	affected, err := s.repo.AccrueEngineRun(ctx, s.db, engine, domain.NormalizeAmount(earned), at.UTC())
	if err != nil {
		return fmt.Errorf("accrue engine run: %w", err)
	}
	if affected == 0 {
		return domain.ErrEngineConfigNotFound
	}
	return nil
}

func (s *Service) TotalEarnings(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.repo.SumEarnings(ctx, s.db, nil)
	return domain.NormalizeAmount(total), err
}

func (s *Service) EarningsSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	since = since.UTC()
	total, err := s.repo.SumEarnings(ctx, s.db, &since)
	return domain.NormalizeAmount(total), err
}

func (s *Service) EarningsBySource(ctx context.Context) ([]domain.SourceTotal, error) {
	rows, err := s.repo.EarningsBySource(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Total = domain.NormalizeAmount(rows[i].Total)
	}
	return rows, nil
}

// DailyEarnings returns one bucket per UTC day for the last `days` days,
// oldest first, including days with no earnings.
func (s *Service) DailyEarnings(ctx context.Context, days int) ([]domain.DailyTotal, error) {
	if days <= 0 {
		days = 30
	}
	if days > maxDailyWindow {
		days = maxDailyWindow
	}
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	rows, err := s.repo.EarningsBetween(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]decimal.Decimal, days)
	for _, row := range rows {
		key := row.CreatedAt.UTC().Format(time.DateOnly)
		buckets[key] = buckets[key].Add(row.Amount)
	}

	out := make([]domain.DailyTotal, 0, days)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out = append(out, domain.DailyTotal{Date: key, Total: domain.NormalizeAmount(buckets[key])})
	}
	return out, nil
}

func (s *Service) RecentEarnings(ctx context.Context, limit int) ([]domain.Earning, error) {
	rows, err := s.repo.RecentEarnings(ctx, s.db, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Amount = domain.NormalizeAmount(rows[i].Amount)
	}
	return rows, nil
}

func (s *Service) RecentLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error) {
	if filter.Level != "" && !filter.Level.Valid() {
		return nil, domain.ErrInvalidLogLevel
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.RecentLogs(ctx, s.db, filter)
}

func (s *Service) ContentStats(ctx context.Context) ([]domain.PlatformStats, error) {
	rows, err := s.repo.ContentStats(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].TotalEarnings = domain.NormalizeAmount(rows[i].TotalEarnings)
	}
	return rows, nil
}

func (s *Service) ListContent(ctx context.Context, filter domain.ContentFilter) ([]domain.Content, pagination.PageInfo, error) {
	var beforeID snowflake.ID
	if token := strings.TrimSpace(filter.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, pagination.PageInfo{}, domain.ErrInvalidPageToken
		}
		parsed, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.PageInfo{}, domain.ErrInvalidPageToken
		}
		beforeID = parsed
	}

	limit := filter.Limit()
	rows, err := s.repo.ListContent(ctx, s.db, filter, beforeID, limit+1)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	rows, info := pagination.Trim(rows, limit, func(c domain.Content) string {
		return strconv.FormatInt(c.ID.Int64(), 10)
	})
	for i := range rows {
		rows[i].Earnings = domain.NormalizeAmount(rows[i].Earnings)
	}
	return rows, info, nil
}

func (s *Service) CountTasks(ctx context.Context, filter domain.TaskCountFilter) (int64, error) {
	return s.repo.CountTasks(ctx, s.db, filter)
}

func (s *Service) TotalWithdrawn(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.repo.SumWithdrawn(ctx, s.db)
	return domain.NormalizeAmount(total), err
}

// AvailableBalance is total earnings minus every non-failed withdrawal.
func (s *Service) AvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	var available decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		earned, err := s.repo.SumEarnings(ctx, tx, nil)
		if err != nil {
			return err
		}
		withdrawn, err := s.repo.SumWithdrawn(ctx, tx)
		if err != nil {
			return err
		}
		available = domain.NormalizeAmount(earned.Sub(withdrawn))
		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("available balance: %w", err)
	}
	return available, nil
}

func normalizeWithdrawal(w domain.Withdrawal) domain.Withdrawal {
	w.Amount = domain.NormalizeAmount(w.Amount)
	return w
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultRecentLimit
	case limit > maxRecentLimit:
		return maxRecentLimit
	default:
		return limit
	}
}

func jsonMap(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}
