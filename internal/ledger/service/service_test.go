package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/ledger/ledgertest"
	"github.com/smallbiznis/incomeengine/pkg/db/pagination"
	"github.com/smallbiznis/incomeengine/pkg/errutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecordEarning(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	earning, err := svc.RecordEarning(ctx, domain.RecordEarningRequest{
		Source:      "content_writer",
		Amount:      dec("1.25"),
		Description: "Blog post",
	})
	require.NoError(t, err)
	assert.NotZero(t, earning.ID)
	assert.Equal(t, domain.DefaultCurrency, earning.Currency)
	assert.Equal(t, domain.EarningStatusPending, earning.Status)
	assert.True(t, earning.CreatedAt.Equal(baseTime))

	total, err := svc.TotalEarnings(ctx)
	require.NoError(t, err)
	assert.True(t, dec("1.25").Equal(total), total.String())
}

func TestRecordEarningRejectsEmptySource(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))

	_, err := svc.RecordEarning(context.Background(), domain.RecordEarningRequest{Source: "  ", Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
	assert.ErrorIs(t, err, errutil.ErrValidation)
}

func TestEarningsSinceAndBySource(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	_, err := svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "micro_tasks", Amount: dec("0.50")})
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)
	_, err = svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "content_writer", Amount: dec("2.00")})
	require.NoError(t, err)
	_, err = svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "micro_tasks", Amount: dec("0.25")})
	require.NoError(t, err)

	since, err := svc.EarningsSince(ctx, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, dec("2.25").Equal(since), since.String())

	bySource, err := svc.EarningsBySource(ctx)
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	assert.Equal(t, "content_writer", bySource[0].Source)
	assert.True(t, dec("2").Equal(bySource[0].Total))
	assert.Equal(t, "micro_tasks", bySource[1].Source)
	assert.Equal(t, int64(2), bySource[1].Count)
	assert.True(t, dec("0.75").Equal(bySource[1].Total))
}

func TestDailyEarningsFillsEmptyDays(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, conn := ledgertest.NewService(t, clk)
	shifter := ledgertest.NewTimeShifter(conn)
	ctx := context.Background()

	today, err := svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "a", Amount: dec("3")})
	require.NoError(t, err)
	old, err := svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "a", Amount: dec("1.5")})
	require.NoError(t, err)
	require.NoError(t, shifter.SetEarningCreatedAt(ctx, old.ID, baseTime.AddDate(0, 0, -2)))
	ancient, err := svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "a", Amount: dec("100")})
	require.NoError(t, err)
	require.NoError(t, shifter.SetEarningCreatedAt(ctx, ancient.ID, baseTime.AddDate(0, 0, -30)))
	_ = today

	days, err := svc.DailyEarnings(ctx, 3)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2025-03-12", days[0].Date)
	assert.True(t, dec("1.5").Equal(days[0].Total))
	assert.Equal(t, "2025-03-13", days[1].Date)
	assert.True(t, days[1].Total.IsZero())
	assert.Equal(t, "2025-03-14", days[2].Date)
	assert.True(t, dec("3").Equal(days[2].Total))
}

func TestRecentLogsFilters(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	entries := []domain.AppendLogRequest{
		{Level: domain.LogLevelInfo, Engine: "content_writer", Message: "started"},
		{Level: domain.LogLevelError, Engine: "content_writer", Message: "boom"},
		{Level: domain.LogLevelError, Engine: "micro_tasks", Message: "timeout"},
	}
	for _, e := range entries {
		require.NoError(t, svc.AppendLog(ctx, e))
		clk.Advance(time.Second)
	}

	errorsOnly, err := svc.RecentLogs(ctx, domain.LogFilter{Level: domain.LogLevelError})
	require.NoError(t, err)
	require.Len(t, errorsOnly, 2)
	assert.Equal(t, "timeout", errorsOnly[0].Message)

	writer, err := svc.RecentLogs(ctx, domain.LogFilter{Engine: "content_writer", Limit: 1})
	require.NoError(t, err)
	require.Len(t, writer, 1)
	assert.Equal(t, "boom", writer[0].Message)

	_, err = svc.RecentLogs(ctx, domain.LogFilter{Level: "fatal"})
	assert.ErrorIs(t, err, domain.ErrInvalidLogLevel)
}

func TestAppendLogValidation(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))
	ctx := context.Background()

	assert.ErrorIs(t, svc.AppendLog(ctx, domain.AppendLogRequest{Level: "trace", Message: "x"}), domain.ErrInvalidLogLevel)
	assert.ErrorIs(t, svc.AppendLog(ctx, domain.AppendLogRequest{Level: domain.LogLevelInfo, Message: " "}), domain.ErrInvalidLogMessage)
}

func TestWithdrawalLifecycle(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	w, err := svc.RecordWithdrawal(ctx, "PayPal", dec("10"), "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "paypal", w.Platform)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
	assert.Nil(t, w.CompletedAt)

	w, err = svc.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusProcessing, "BATCH-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusProcessing, w.Status)
	assert.Equal(t, "BATCH-1", w.TransactionID)
	assert.Nil(t, w.CompletedAt)

	clk.Advance(time.Hour)
	w, err = svc.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, w.Status)
	assert.Equal(t, "BATCH-1", w.TransactionID)
	require.NotNil(t, w.CompletedAt)
	assert.True(t, w.CompletedAt.Equal(baseTime.Add(time.Hour)))

	_, err = svc.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusFailed, "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	assert.ErrorIs(t, err, errutil.ErrConflict)

	stored, err := svc.GetWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, stored.Status)
}

func TestUpdateWithdrawalStatusErrors(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))
	ctx := context.Background()

	_, err := svc.UpdateWithdrawalStatus(ctx, 42, domain.WithdrawalStatusProcessing, "")
	assert.ErrorIs(t, err, domain.ErrWithdrawalNotFound)

	w, err := svc.RecordWithdrawal(ctx, "cashapp", dec("5"), "$me")
	require.NoError(t, err)

	_, err = svc.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusPending, "")
	assert.ErrorIs(t, err, domain.ErrInvalidWithdrawalStatus)
	_, err = svc.UpdateWithdrawalStatus(ctx, w.ID, "lost", "")
	assert.ErrorIs(t, err, domain.ErrInvalidWithdrawalStatus)

	_, err = svc.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusCompleted, "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = svc.GetWithdrawal(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrWithdrawalNotFound)
}

func TestRecordWithdrawalValidation(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))
	ctx := context.Background()

	_, err := svc.RecordWithdrawal(ctx, "", dec("1"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidPlatform)
	_, err = svc.RecordWithdrawal(ctx, "paypal", dec("0"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.RecordWithdrawal(ctx, "paypal", dec("-3"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestAvailableBalanceExcludesFailedWithdrawals(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	_, err := svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "a", Amount: dec("20")})
	require.NoError(t, err)

	inFlight, err := svc.RecordWithdrawal(ctx, "paypal", dec("5"), "x")
	require.NoError(t, err)
	failed, err := svc.RecordWithdrawal(ctx, "paypal", dec("7"), "x")
	require.NoError(t, err)
	_, err = svc.UpdateWithdrawalStatus(ctx, failed.ID, domain.WithdrawalStatusFailed, "")
	require.NoError(t, err)
	_, err = svc.UpdateWithdrawalStatus(ctx, inFlight.ID, domain.WithdrawalStatusPendingManual, "")
	require.NoError(t, err)

	withdrawn, err := svc.TotalWithdrawn(ctx)
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(withdrawn), withdrawn.String())

	available, err := svc.AvailableBalance(ctx)
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(available), available.String())

	list, err := svc.ListWithdrawals(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestEngineConfigUpsertIsIdempotent(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	require.NoError(t, svc.UpsertEngineConfig(ctx, "content_writer"))
	require.NoError(t, svc.AccrueEngineRun(ctx, "content_writer", dec("1.5"), baseTime))
	require.NoError(t, svc.SetEngineEnabled(ctx, "content_writer", false))

	require.NoError(t, svc.UpsertEngineConfig(ctx, "content_writer"))

	cfg, err := svc.GetEngineConfig(ctx, "content_writer")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.True(t, dec("1.5").Equal(cfg.TotalEarned))
	require.NotNil(t, cfg.LastRun)
	assert.True(t, cfg.LastRun.Equal(baseTime))

	assert.ErrorIs(t, svc.UpsertEngineConfig(ctx, ""), domain.ErrInvalidEngineName)
}

func TestAccrueEngineRunAccumulates(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))
	ctx := context.Background()

	require.NoError(t, svc.UpsertEngineConfig(ctx, "micro_tasks"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.AccrueEngineRun(ctx, "micro_tasks", dec("0.1"), baseTime))
		}()
	}
	wg.Wait()

	cfg, err := svc.GetEngineConfig(ctx, "micro_tasks")
	require.NoError(t, err)
	assert.True(t, dec("1").Equal(cfg.TotalEarned), cfg.TotalEarned.String())

	assert.ErrorIs(t, svc.AccrueEngineRun(ctx, "missing", dec("1"), baseTime), domain.ErrEngineConfigNotFound)
}

func TestSetEngineEnabledUnknownEngine(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))

	err := svc.SetEngineEnabled(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, domain.ErrEngineConfigNotFound)
	assert.ErrorIs(t, err, errutil.ErrNotFound)
}

func TestListEngineConfigsOrdered(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))
	ctx := context.Background()

	for _, name := range []string{"stock_art", "affiliate_blog", "content_writer"} {
		require.NoError(t, svc.UpsertEngineConfig(ctx, name))
	}
	cfgs, err := svc.ListEngineConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, cfgs, 3)
	assert.Equal(t, "affiliate_blog", cfgs[0].Engine)
	assert.True(t, cfgs[0].Enabled)
	assert.Nil(t, cfgs[0].LastRun)
}

func TestContentStatsAndMetrics(t *testing.T) {
	svc, _ := ledgertest.NewService(t, clock.NewFakeClock(baseTime))
	ctx := context.Background()

	post, err := svc.RecordContent(ctx, domain.RecordContentRequest{Type: "article", Platform: "medium", Title: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusDraft, post.Status)
	_, err = svc.RecordContent(ctx, domain.RecordContentRequest{Type: "article", Platform: "medium", Status: domain.ContentStatusPublished})
	require.NoError(t, err)
	_, err = svc.RecordContent(ctx, domain.RecordContentRequest{Type: "design", Platform: "redbubble", Status: domain.ContentStatusSaved})
	require.NoError(t, err)

	require.NoError(t, svc.IncrementContentMetrics(ctx, post.ID, 120, dec("0.4")))
	assert.ErrorIs(t, svc.IncrementContentMetrics(ctx, 1, 1, decimal.Zero), domain.ErrContentNotFound)
	assert.ErrorIs(t, svc.IncrementContentMetrics(ctx, post.ID, -1, decimal.Zero), domain.ErrInvalidContent)

	stats, err := svc.ContentStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "medium", stats[0].Platform)
	assert.Equal(t, int64(2), stats[0].Count)
	assert.Equal(t, int64(120), stats[0].TotalViews)
	assert.True(t, dec("0.4").Equal(stats[0].TotalEarnings))

	_, err = svc.RecordContent(ctx, domain.RecordContentRequest{Platform: "medium"})
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
}

func TestListContentPaginates(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.RecordContent(ctx, domain.RecordContentRequest{Type: "article", Platform: "medium"})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}
	_, err := svc.RecordContent(ctx, domain.RecordContentRequest{Type: "design", Platform: "redbubble"})
	require.NoError(t, err)

	first, info, err := svc.ListContent(ctx, domain.ContentFilter{
		Platform:   "medium",
		Pagination: pagination.Pagination{PageSize: 3},
	})
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.True(t, info.HasMore)

	second, info, err := svc.ListContent(ctx, domain.ContentFilter{
		Platform:   "medium",
		Pagination: pagination.Pagination{PageSize: 3, PageToken: info.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.False(t, info.HasMore)
	assert.Greater(t, first[2].ID.Int64(), second[0].ID.Int64())

	_, _, err = svc.ListContent(ctx, domain.ContentFilter{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestCountTasks(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	_, err := svc.RecordTask(ctx, domain.RecordTaskRequest{Engine: "micro_tasks", TaskType: "survey", Earnings: dec("0.3")})
	require.NoError(t, err)
	clk.Advance(time.Hour)
	task, err := svc.RecordTask(ctx, domain.RecordTaskRequest{Engine: "micro_tasks", TaskType: "data_labeling", Status: domain.TaskStatusPending})
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)

	count, err := svc.CountTasks(ctx, domain.TaskCountFilter{Engine: "micro_tasks"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	since := baseTime.Add(30 * time.Minute)
	count, err = svc.CountTasks(ctx, domain.TaskCountFilter{Engine: "micro_tasks", Since: &since})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.RecordTask(ctx, domain.RecordTaskRequest{TaskType: "survey"})
	assert.ErrorIs(t, err, domain.ErrInvalidTask)
}

func TestRecentEarningsNewestFirst(t *testing.T) {
	clk := clock.NewFakeClock(baseTime)
	svc, _ := ledgertest.NewService(t, clk)
	ctx := context.Background()

	for _, amount := range []string{"1", "2", "3"} {
		_, err := svc.RecordEarning(ctx, domain.RecordEarningRequest{Source: "a", Amount: dec(amount)})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	rows, err := svc.RecentEarnings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, dec("3").Equal(rows[0].Amount))
	assert.True(t, dec("2").Equal(rows[1].Amount))
}
