// =============================================================================
// 📦 DebateFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 .env + YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("DEBATEFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 DebateFlow 的完整配置结构
type Config struct {
	// Debate 辩论编排配置
	Debate DebateConfig `yaml:"debate" env:"DEBATE"`

	// Participants 参与者列表，为空时使用内置的 Host/John/Jack
	Participants []ParticipantConfig `yaml:"participants" env:"-"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Archive 归档存储配置
	Archive ArchiveConfig `yaml:"archive" env:"ARCHIVE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// DebateConfig 辩论配置
type DebateConfig struct {
	// 默认辩题
	Topic string `yaml:"topic" env:"TOPIC"`
	// 总发言次数上限
	TurnBudget int `yaml:"turn_budget" env:"TURN_BUDGET"`
	// 传给生成器的最近回合数
	ContextWindow int `yaml:"context_window" env:"CONTEXT_WINDOW"`
	// 轮次是否从 1 开始计数
	OneBasedRounds bool `yaml:"one_based_rounds" env:"ONE_BASED_ROUNDS"`
	// 是否在人设前加 "This is round K of N."
	AnnounceRounds bool `yaml:"announce_rounds" env:"ANNOUNCE_ROUNDS"`
	// 收尾标记（大小写不敏感）
	ClosingMarkers []string `yaml:"closing_markers" env:"CLOSING_MARKERS"`
	// 空内容策略: reject_empty, accept_empty
	ContentPolicy string `yaml:"content_policy" env:"CONTENT_POLICY"`
	// 强制收尾策略: deterministic, seeded_random
	ConclusionStrategy string `yaml:"conclusion_strategy" env:"CONCLUSION_STRATEGY"`
	// seeded_random 使用的种子
	Seed uint64 `yaml:"seed" env:"SEED"`
	// 终端/面板的打字动画时长
	TypingDelay time.Duration `yaml:"typing_delay" env:"TYPING_DELAY"`
}

// ParticipantConfig 参与者配置
type ParticipantConfig struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Persona string `yaml:"persona"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// Provider 名称，目前仅支持 claude
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 单次回复最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 温度参数
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	// 熔断阈值（连续失败次数）
	BreakerThreshold int `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	// 熔断后多久进入半开
	BreakerReset time.Duration `yaml:"breaker_reset" env:"BREAKER_RESET"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（run 接口会跑完整场辩论，需要足够长）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每秒请求数限制
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// API Key 列表，为空时不校验
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 是否允许通过 ?api_key= 传递（websocket 客户端无法设置 Header）
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// JWT 认证
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
}

// JWTConfig JWT 认证配置，Secret 与 PublicKey 都为空时不启用
type JWTConfig struct {
	// HMAC 密钥（HS256）
	Secret string `yaml:"secret" env:"SECRET"`
	// PEM 格式 RSA 公钥（RS256）
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	// 期望的 iss
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// 期望的 aud
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

// Enabled 是否配置了任一验签密钥
func (j JWTConfig) Enabled() bool {
	return j.Secret != "" || j.PublicKey != ""
}

// ArchiveConfig 归档配置
type ArchiveConfig struct {
	// 驱动类型: none, sqlite, postgres, mysql, redis
	Driver string `yaml:"driver" env:"DRIVER"`
	// 数据库 DSN；sqlite 为文件路径
	DSN string `yaml:"dsn" env:"DSN"`
	// Redis 地址
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
	// Redis 密码
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	// Redis 数据库编号
	RedisDB int `yaml:"redis_db" env:"REDIS_DB"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// Redis 启用 TLS
	RedisTLS bool `yaml:"redis_tls" env:"REDIS_TLS"`
	// 归档保留时间，0 表示永久（仅 redis 生效）
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 连接池（sqlite 固定单连接，忽略以下设置）
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 写入遇到死锁、断连等可重试错误时的最大尝试次数
	SaveAttempts int `yaml:"save_attempts" env:"SAVE_ATTEMPTS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	dotenv     []string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DEBATEFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithDotEnv 在读取环境变量前加载 .env 文件（不存在则忽略，已有的环境变量不被覆盖）
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	l.dotenv = append(l.dotenv, paths...)
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. .env 只写入进程环境，后续统一走环境变量覆盖
	if err := l.loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 4. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 5. 兼容裸 API_KEY
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("API_KEY")
	}

	// 6. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadDotEnv 加载 .env 文件
func (l *Loader) loadDotEnv() error {
	for _, path := range l.dotenv {
		if err := gotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

var (
	knownContentPolicies = []string{"reject_empty", "accept_empty"}
	knownStrategies      = []string{"", "deterministic", "seeded_random", "random"}
	knownArchiveDrivers  = []string{"", "none", "sqlite", "postgres", "mysql", "redis"}
	knownRoles           = []string{"moderator", "proponent", "opponent", "free_form", "free-form", "freeform"}
)

// Validate 验证配置，汇总所有错误
func (c *Config) Validate() error {
	var errs []string

	// 辩论配置
	if c.Debate.TurnBudget < 1 {
		errs = append(errs, "debate.turn_budget must be at least 1")
	}
	if c.Debate.ContextWindow < 0 {
		errs = append(errs, "debate.context_window must not be negative")
	}
	if !oneOf(c.Debate.ContentPolicy, knownContentPolicies) {
		errs = append(errs, fmt.Sprintf("unknown debate.content_policy %q", c.Debate.ContentPolicy))
	}
	if !oneOf(c.Debate.ConclusionStrategy, knownStrategies) {
		errs = append(errs, fmt.Sprintf("unknown debate.conclusion_strategy %q", c.Debate.ConclusionStrategy))
	}
	if c.Debate.TypingDelay < 0 {
		errs = append(errs, "debate.typing_delay must not be negative")
	}

	// 参与者
	if n := len(c.Participants); n > 0 {
		if n < 2 {
			errs = append(errs, "at least two participants are required")
		}
		seen := make(map[string]struct{}, n)
		for i, p := range c.Participants {
			if strings.TrimSpace(p.Name) == "" {
				errs = append(errs, fmt.Sprintf("participants[%d]: name is required", i))
			}
			if _, dup := seen[p.Name]; dup {
				errs = append(errs, fmt.Sprintf("participants[%d]: duplicate name %q", i, p.Name))
			}
			seen[p.Name] = struct{}{}
			if !oneOf(strings.ToLower(p.Role), knownRoles) {
				errs = append(errs, fmt.Sprintf("participants[%d]: unknown role %q", i, p.Role))
			}
		}
	}

	// LLM 配置
	if c.LLM.Provider != "claude" {
		errs = append(errs, fmt.Sprintf("unsupported llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.max_retries must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, "llm.temperature must be between 0 and 1")
	}

	// 服务器配置
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	// 归档配置
	if !oneOf(c.Archive.Driver, knownArchiveDrivers) {
		errs = append(errs, fmt.Sprintf("unknown archive.driver %q", c.Archive.Driver))
	}
	switch c.Archive.Driver {
	case "postgres", "mysql":
		if c.Archive.DSN == "" {
			errs = append(errs, "archive.dsn is required for "+c.Archive.Driver)
		}
	case "redis":
		if c.Archive.RedisAddr == "" {
			errs = append(errs, "archive.redis_addr is required for redis")
		}
	}
	if c.Archive.MaxOpenConns < 0 || c.Archive.MaxIdleConns < 0 {
		errs = append(errs, "archive pool sizes must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
