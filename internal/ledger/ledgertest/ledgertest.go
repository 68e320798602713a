// Package ledgertest builds a throwaway ledger for package tests and moves
// recorded rows through time without waiting on the wall clock.
package ledgertest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/ledger/repository"
	"github.com/smallbiznis/incomeengine/internal/ledger/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB returns a migrated sqlite database private to t.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=busy_timeout(5000)"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(domain.Models()...))
	return conn
}

// NewService wires a ledger service over a fresh database.
func NewService(t testing.TB, clk clock.Clock) (domain.Service, *gorm.DB) {
	t.Helper()

	conn := OpenDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.New(service.Params{
		DB:    conn,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, conn
}

// TimeShifter rewrites stored timestamps so windowed reads can be exercised.
type TimeShifter struct {
	db *gorm.DB
}

func NewTimeShifter(db *gorm.DB) *TimeShifter {
	return &TimeShifter{db: db}
}

// SetEarningCreatedAt moves a single earning to at.
func (ts *TimeShifter) SetEarningCreatedAt(ctx context.Context, id snowflake.ID, at time.Time) error {
	return ts.db.WithContext(ctx).Exec(
		`UPDATE earnings SET created_at = ? WHERE id = ?`,
		at.UTC(),
		id,
	).Error
}

// SetContentCreatedAt moves a single content row to at.
func (ts *TimeShifter) SetContentCreatedAt(ctx context.Context, id snowflake.ID, at time.Time) error {
	return ts.db.WithContext(ctx).Exec(
		`UPDATE content SET created_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(),
		at.UTC(),
		id,
	).Error
}

// SetWithdrawalStatus forces a status without the transition checks, for
// setting up rows in states the service would not reach on its own.
func (ts *TimeShifter) SetWithdrawalStatus(ctx context.Context, id snowflake.ID, status domain.WithdrawalStatus) error {
	return ts.db.WithContext(ctx).Exec(
		`UPDATE withdrawals SET status = ? WHERE id = ?`,
		status,
		id,
	).Error
}
