// =============================================================================
// 📦 DebateFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Debate:    DefaultDebateConfig(),
		LLM:       DefaultLLMConfig(),
		Server:    DefaultServerConfig(),
		Archive:   DefaultArchiveConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultDebateConfig 返回默认辩论配置
func DefaultDebateConfig() DebateConfig {
	return DebateConfig{
		Topic:              "Should artificial intelligence be used in classrooms?",
		TurnBudget:         10,
		ContextWindow:      6,
		OneBasedRounds:     true,
		AnnounceRounds:     false,
		ClosingMarkers:     []string{"overall winner", "winner:"},
		ContentPolicy:      "reject_empty",
		ConclusionStrategy: "deterministic",
		TypingDelay:        1500 * time.Millisecond,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:         "claude",
		Model:            "claude-3-5-sonnet-20241022",
		Timeout:          30 * time.Second,
		MaxRetries:       2,
		MaxTokens:        256,
		Temperature:      0.7,
		BreakerThreshold: 5,
		BreakerReset:     30 * time.Second,
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultArchiveConfig 返回默认归档配置
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Driver:          "none",
		RedisAddr:       "localhost:6379",
		KeyPrefix:       "debateflow:",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		SaveAttempts:    3,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "debateflow",
		SampleRate:   0.1,
	}
}
