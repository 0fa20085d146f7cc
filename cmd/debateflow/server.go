package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/api/handlers"
	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/archive"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/internal/server"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 DebateFlow 的看板服务：API + websocket + 静态页面，Metrics 独立端口
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	group *server.Group

	// Handlers
	healthHandler *handlers.HealthHandler
	debateHandler *handlers.DebateHandler
	llmHandler    *handlers.LLMHandler
	hub           *handlers.StreamHub

	archive          archive.Store
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	if s.metricsCollector == nil {
		s.metricsCollector = metrics.NewCollector("debateflow", s.logger)
	}

	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	managers := []*server.Manager{
		server.NewManager("dashboard", s.buildHandler(), s.httpConfig(), s.logger),
	}
	if s.cfg.Server.MetricsPort > 0 {
		managers = append(managers, server.NewManager("metrics", s.metricsHandler(), s.metricsConfig(), s.logger))
	}

	s.group = server.NewGroup(s.logger, managers...)
	if err := s.group.Start(); err != nil {
		return fmt.Errorf("failed to start servers: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("archive_driver", s.archive.Driver()),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() error {
	store, err := archive.NewStore(context.Background(), s.cfg.Archive, s.logger, s.metricsCollector)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	s.archive = store

	gen, provider, err := buildGenerator(s.cfg, s.logger, s.metricsCollector)
	if err != nil {
		return err
	}
	if s.cfg.LLM.APIKey == "" {
		s.logger.Warn("LLM API key not configured, debate turns will fail until DEBATEFLOW_LLM_API_KEY is set")
	}
	s.llmHandler = handlers.NewLLMHandler(gen, provider.Name(), s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger,
		handlers.WithArchiveReadiness(store),
		handlers.WithLLMReadiness(handlers.LLMReadiness{
			Provider:      provider.Name(),
			Model:         s.cfg.LLM.Model,
			KeyConfigured: s.cfg.LLM.APIKey != "",
		}),
	)

	debateCfg, err := buildDebateConfig(s.cfg.Debate)
	if err != nil {
		return err
	}
	participants, err := participantFactory(s.cfg.Participants)
	if err != nil {
		return err
	}

	s.hub = handlers.NewStreamHub(s.logger,
		handlers.WithOriginPatterns(s.cfg.Server.CORSAllowedOrigins...),
		handlers.WithStreamMetrics(s.metricsCollector),
	)

	s.debateHandler, err = handlers.NewDebateHandler(handlers.DebateHandlerConfig{
		Defaults:     debateCfg,
		DefaultTopic: s.cfg.Debate.Topic,
		Participants: participants,
		Generator: func(topic string) debate.Generator {
			return gen.ForTopic(topic)
		},
		TypingDelay: s.cfg.Debate.TypingDelay,
	}, s.logger,
		handlers.WithStreamHub(s.hub),
		handlers.WithArchiveStore(store),
		handlers.WithDebateMetrics(s.metricsCollector),
	)
	if err != nil {
		return err
	}

	s.logger.Info("Handlers initialized", zap.String("provider", provider.Name()))
	return nil
}

// =============================================================================
// 🌐 路由与中间件
// =============================================================================

// routes 注册全部路由（Go 1.22 方法 + 路径模式）
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 辩论
	mux.HandleFunc("POST /api/v1/debate", s.debateHandler.HandleStart)
	mux.HandleFunc("GET /api/v1/debate", s.debateHandler.HandleState)
	mux.HandleFunc("DELETE /api/v1/debate", s.debateHandler.HandleReset)
	mux.HandleFunc("POST /api/v1/debate/step", s.debateHandler.HandleStep)
	mux.HandleFunc("POST /api/v1/debate/run", s.debateHandler.HandleRun)
	mux.HandleFunc("POST /api/v1/debate/finalize", s.debateHandler.HandleFinalize)
	mux.HandleFunc("GET /api/v1/debate/transcript", s.debateHandler.HandleTranscript)
	mux.HandleFunc("POST /api/v1/debate/comment", s.debateHandler.HandleComment)
	mux.HandleFunc("GET /api/v1/debate/stream", s.hub.HandleStream)

	// 归档
	mux.HandleFunc("POST /api/v1/debate/archive", s.debateHandler.HandleArchiveCurrent)
	mux.HandleFunc("GET /api/v1/archive", s.debateHandler.HandleListArchive)
	mux.HandleFunc("GET /api/v1/archive/{id}", s.debateHandler.HandleGetArchive)

	// 上游连通性
	mux.HandleFunc("GET /api/v1/llm/health", s.llmHandler.HandleHealth)

	// 看板
	mux.Handle("GET /", handlers.DashboardHandler())

	return mux
}

// skipAuthPaths 不需要认证的路径；看板页面本身公开，API 仍受保护
func skipAuthPaths() []string {
	return []string{
		"/", "/static/app.css", "/static/app.js",
		"/health", "/healthz", "/ready", "/readyz", "/version",
	}
}

// buildHandler 构建中间件链
func (s *Server) buildHandler() http.Handler {
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	}
	if len(s.cfg.Server.APIKeys) > 0 {
		chain = append(chain, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths(), s.cfg.Server.AllowQueryAPIKey, s.logger))
	}
	if s.cfg.Server.JWT.Enabled() {
		chain = append(chain, JWTAuth(s.cfg.Server.JWT, skipAuthPaths(), s.logger))
	}
	return Chain(s.routes(), chain...)
}

func (s *Server) httpConfig() server.Config {
	return server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) metricsConfig() server.Config {
	return server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() error {
	var err error
	if s.group != nil {
		err = s.group.Wait(context.Background())
	}
	s.Shutdown()
	return err
}

// Shutdown 释放 Server 持有的资源；HTTP 服务器已由 Group 关闭
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.logger.Error("Archive close error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
