package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/app"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/observability"
	obsmiddleware "github.com/smallbiznis/incomeengine/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/incomeengine/internal/observability/metrics"
	obstracing "github.com/smallbiznis/incomeengine/internal/observability/tracing"
	reportingdomain "github.com/smallbiznis/incomeengine/internal/reporting/domain"
	withdrawaldomain "github.com/smallbiznis/incomeengine/internal/withdrawal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// EngineControl is the part of the scheduler the HTTP layer drives.
type EngineControl interface {
	TriggerNow(ctx context.Context, name string) (decimal.Decimal, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			log.Info("http.server.started", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	engines      EngineControl
	withdrawals  withdrawaldomain.Service
	reports      reportingdomain.Service
	log          *zap.Logger
	dashboardDir string
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	App *app.Application
	Log *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.App.Config,
		engines:      p.App.Scheduler,
		withdrawals:  p.App.Withdrawals,
		reports:      p.App.Reports,
		log:          p.Log.Named("http.server"),
		dashboardDir: p.App.Config.DashboardDir,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Engines --------
	api.POST("/engine/:name/run", s.RunEngine)
	api.POST("/engine/:name/toggle", s.ToggleEngine)

	// -------- Reports --------
	api.GET("/dashboard", s.GetDashboard)
	api.GET("/earnings", s.GetEarnings)
	api.GET("/logs", s.ListLogs)
	api.GET("/content", s.ListContent)
	api.GET("/health", s.GetHealth)

	// -------- Withdrawals --------
	api.GET("/withdrawals", s.ListWithdrawals)
	api.POST("/withdraw", s.RequestWithdrawal)
	api.POST("/withdrawals/:id/status", s.UpdateWithdrawalStatus)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		if fileExists(s.dashboardDir, c.Request.URL.Path) {
			c.File(filepath.Join(s.dashboardDir, filepath.Clean(c.Request.URL.Path)))
			return
		}

		index := filepath.Join(s.dashboardDir, "index.html")
		if fileExists(s.dashboardDir, "/index.html") {
			c.File(index)
			return
		}

		AbortWithError(c, ErrNotFound)
	})
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || clean == ".." {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
