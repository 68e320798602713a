package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/incomeengine/internal/config"
	obslogger "github.com/smallbiznis/incomeengine/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/prometheus"
)

var Module = fx.Module("database",
	fx.Provide(Dialect),
	fx.Provide(New),
)

const connectAttempts = 5

func New(lc fx.Lifecycle, cfg config.Config, dialector gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	log = log.Named("database").With(zap.String("type", cfg.DBType))

	gormCfg := obslogger.DefaultGormLoggerConfig()
	gormCfg.Base = log
	if !cfg.IsProduction() {
		gormCfg.Level = gormlogger.Info
	}

	var (
		conn *gorm.DB
		err  error
	)
	for i := 0; i < connectAttempts; i++ {
		conn, err = gorm.Open(dialector, &gorm.Config{
			Logger:         obslogger.NewGormLogger(gormCfg),
			TranslateError: true,
		})
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying", zap.Int("retry", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBType == "sqlite" {
		// one writer keeps sqlite from returning SQLITE_BUSY under concurrent engines
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBName))); err != nil {
		return nil, fmt.Errorf("register db tracing: %w", err)
	}
	if err := conn.Use(prometheus.New(prometheus.Config{
		DBName:          metricsDBName(cfg),
		RefreshInterval: 15,
	})); err != nil {
		return nil, fmt.Errorf("register db metrics: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing database connections")
			return sqlDB.Close()
		},
	})

	log.Info("database connection configured")
	return conn, nil
}

func metricsDBName(cfg config.Config) string {
	if cfg.DBType == "sqlite" {
		return "sqlite"
	}
	name := strings.TrimSpace(cfg.DBName)
	if name == "" {
		return "unknown"
	}
	return name
}
