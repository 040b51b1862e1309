package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/crewstudio/api/handlers"
	"github.com/BaSui01/crewstudio/internal/server"
	"github.com/BaSui01/crewstudio/internal/session"
	"github.com/BaSui01/crewstudio/internal/telemetry"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (sessions, catalog, runs) and the metrics server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := initLogger(cfg.Log)
			defer logger.Sync()

			logger.Info("Starting crewstudio",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			ctx := cmd.Context()
			otelProviders, err := telemetry.Init(ctx, cfg.Telemetry, Version, logger)
			if err != nil {
				logger.Warn("failed to initialize telemetry", zap.Error(err))
			}

			srv, err := NewServer(newApp(cfg, logger), otelProviders)
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			waitErr := srv.WaitForShutdown(ctx)
			logger.Info("crewstudio stopped")
			return waitErr
		},
	}
}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 持有 API 与 metrics 两个监听端口
type Server struct {
	app    *app
	logger *zap.Logger
	otel   *telemetry.Providers

	sessions *session.Store
	api      *handlers.API

	httpManager    *server.Manager
	metricsManager *server.Manager

	// rate limiter 清理 goroutine 的生命周期
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器并装配全部 handler，不监听端口
func NewServer(a *app, otelProviders *telemetry.Providers) (*Server, error) {
	cfg := a.cfg
	tokens, err := session.NewTokenIssuer(cfg.Session.JWTSecret, cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		return nil, err
	}
	if cfg.Session.JWTSecret == "" {
		a.logger.Info("session.jwt_secret not set, using a random key (tokens do not survive restarts)")
	}

	s := &Server{
		app:      a,
		logger:   a.logger,
		otel:     otelProviders,
		sessions: session.NewStore(cfg.Session, a.seed, a.logger),
	}

	health := handlers.NewHealthHandler(Version, a.logger)
	health.RegisterCheck(handlers.NewOutputDirCheck(cfg.Crew.OutputDir))

	sessionHandler := handlers.NewSessionHandler(s.sessions, tokens, a.logger)
	sessionHandler.OnChange(a.collector.SetSessions)

	runHandler := handlers.NewRunHandler(a.models, a.runner, a.logger).
		WithOriginPatterns(cfg.Server.AllowedOrigins)
	runHandler.OnStart(a.collector.RunStarted)

	s.api = &handlers.API{
		Health:   health,
		Sessions: sessionHandler,
		Catalog:  handlers.NewCatalogHandler(a.catalog, a.logger),
		Runs:     runHandler,
	}
	return s, nil
}

// sharedMetricsPort metrics 是否挂在 API 端口上
func (s *Server) sharedMetricsPort() bool {
	sc := s.app.cfg.Server
	return sc.MetricsPort == 0 || sc.MetricsPort == sc.HTTPPort
}

// Handler 返回带中间件链的 API handler
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.api.Register(mux, BuildTime, GitCommit)
	if s.sharedMetricsPort() {
		mux.Handle("GET /metrics", s.app.collector.Handler())
	}

	sc := s.app.cfg.Server
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.app.collector),
		OTelTracing(),
		RateLimiter(ctx, sc.RateLimitRPS, sc.RateLimitBurst, s.logger),
	)
}

// =============================================================================
// 🚀 启动 / 🛑 关闭
// =============================================================================

// Start 启动 API 与 metrics 服务器（非阻塞）
func (s *Server) Start() error {
	sc := s.app.cfg.Server

	ctx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	s.httpManager = server.NewManager(s.Handler(ctx), server.FromServerConfig("api", sc, sc.HTTPPort), s.logger)
	if err := s.httpManager.Start(); err != nil {
		cancel()
		return err
	}

	if !s.sharedMetricsPort() {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", s.app.collector.Handler())
		mcfg := server.FromServerConfig("metrics", sc, sc.MetricsPort)
		mcfg.WriteTimeout = server.DefaultConfig().WriteTimeout
		s.metricsManager = server.NewManager(mux, mcfg, s.logger)
		if err := s.metricsManager.Start(); err != nil {
			s.Shutdown(context.Background())
			return err
		}
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.Int("metrics_port", sc.MetricsPort),
		zap.String("output_dir", s.app.cfg.Crew.OutputDir),
	)
	return nil
}

// WaitForShutdown 等待信号或 ctx 结束后优雅关闭，返回服务异常
func (s *Server) WaitForShutdown(ctx context.Context) error {
	var err error
	if s.httpManager != nil {
		err = s.httpManager.WaitForShutdown(ctx)
	}
	s.Shutdown(context.WithoutCancel(ctx))
	return err
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Starting graceful shutdown...")

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
