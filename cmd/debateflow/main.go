// =============================================================================
// 🎭 DebateFlow 主程序入口
// =============================================================================
// 多智能体辩论编排：终端直接跑一场辩论，或启动带看板的 HTTP 服务
//
// 使用方法:
//
//	debateflow run --topic "..."              # 终端辩论
//	debateflow run --tui                      # 带打字动画的终端界面
//	debateflow serve --config config.yaml     # 看板 + API + Metrics
//	debateflow version                        # 显示版本信息
//	debateflow health                         # 健康检查
//
// =============================================================================

// @title DebateFlow API
// @version 1.0
// @description 多智能体辩论编排服务：开始、推进、收尾与导出辩论
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/internal/telemetry"
)

// 版本信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK     = 0
	exitError  = 1
	exitPaused = 2
)

func main() {
	if len(os.Args) < 2 {
		os.Exit(runDebateCommand(nil))
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runDebateCommand(os.Args[2:]))
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitError)
	}
}

// =============================================================================
// 🚀 命令实现
// =============================================================================

// loadConfig 加载并校验配置；.env 与 DEBATEFLOW_* 环境变量覆盖文件中的值
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(configPath).
		WithDotEnv(".env").
		Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting DebateFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("Failed to initialize telemetry, continuing without it", zap.Error(err))
	}

	server := NewServer(cfg, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// 阻塞直到收到信号或任一服务器异常退出
	if err := server.WaitForShutdown(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	if otelProviders != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	logger.Info("DebateFlow stopped")
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(exitError)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(exitError)
	}

	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("DebateFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`DebateFlow - Multi-agent debate orchestrator

Usage:
  debateflow <command> [options]

Commands:
  run       Run one debate in the terminal (default)
  serve     Start the dashboard, API and metrics servers
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'run':
  --config <path>   Path to configuration file (YAML)
  --topic <text>    Debate topic
  --turns <n>       Turn budget
  --tui             Animated terminal view with typing indicator
  --icons           Prefix speakers with role icons
  --out <path>      Write the transcript to this file
  --detailed        Use the detailed transcript format (header, timestamps, summary)

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Environment:
  DEBATEFLOW_LLM_API_KEY   Claude API key (also read from .env)

Examples:
  debateflow run --topic "Should homework be banned?" --turns 8
  debateflow run --tui
  debateflow serve --config /etc/debateflow/config.yaml
  debateflow health --addr http://localhost:8080
  debateflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// exitCode 把辩论错误映射为进程退出码
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPaused):
		return exitPaused
	default:
		return exitError
	}
}
