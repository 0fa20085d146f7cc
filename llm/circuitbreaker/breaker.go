package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/llm"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int
	// Timeout 单次调用超时时间，0 表示不额外限制
	Timeout time.Duration
	// ResetTimeout 熔断恢复等待时间（Open -> HalfOpen）
	ResetTimeout time.Duration
	// HalfOpenMaxCalls 半开状态下允许的最大并发试探数
	HalfOpenMaxCalls int
	// OnStateChange 状态变更回调，在锁外同步调用
	OnStateChange func(from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Threshold:        5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// ErrCircuitOpen 熔断器打开时返回，已映射为不可重试的 llm.Error。
var ErrCircuitOpen = &llm.Error{
	Code:       llm.ErrProviderUnavailable,
	Message:    "circuit breaker is open",
	HTTPStatus: 503,
}

// CircuitBreaker 熔断器接口
type CircuitBreaker interface {
	// Call 执行调用，如果熔断器打开则返回 ErrCircuitOpen
	Call(ctx context.Context, fn func(ctx context.Context) error) error
	// State 获取当前状态
	State() State
	// Reset 手动恢复
	Reset()
}

type breaker struct {
	config *Config
	logger *zap.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	halfOpenCalls   int
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(config *Config, logger *zap.Logger) CircuitBreaker {
	return newBreaker(config, logger, time.Now)
}

func newBreaker(config *Config, logger *zap.Logger, now func() time.Time) *breaker {
	if config == nil {
		config = DefaultConfig()
	}
	c := *config
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &breaker{
		config: &c,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    now,
		state:  StateClosed,
	}
}

// Call 实现 CircuitBreaker.Call
func (b *breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	callCtx := ctx
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	err := fn(callCtx)
	// 客户端错误与调用方取消不计入熔断失败
	b.afterCall(err == nil || isClientError(err) || errors.Is(ctx.Err(), context.Canceled))
	return err
}

// isClientError 判断错误是否为客户端错误（不应计入熔断失败）。
func isClientError(err error) bool {
	var le *llm.Error
	if !errors.As(err, &le) {
		return false
	}
	switch le.Code {
	case llm.ErrInvalidRequest, llm.ErrUnauthorized, llm.ErrForbidden, llm.ErrQuotaExceeded:
		return true
	}
	return false
}

func (b *breaker) beforeCall() error {
	b.mu.Lock()
	var from, to State
	changed := false
	defer func() {
		b.mu.Unlock()
		if changed {
			b.notify(from, to)
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) < b.config.ResetTimeout {
			return ErrCircuitOpen
		}
		from, to, changed = b.state, StateHalfOpen, true
		b.state = StateHalfOpen
		b.halfOpenCalls = 1
		b.logger.Info("circuit half-open, probing upstream")
		return nil
	case StateHalfOpen:
		if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		b.halfOpenCalls++
		return nil
	default:
		return nil
	}
}

func (b *breaker) afterCall(success bool) {
	b.mu.Lock()
	from := b.state

	if success {
		b.failureCount = 0
		if b.state == StateHalfOpen {
			b.state = StateClosed
			b.halfOpenCalls = 0
			b.logger.Info("circuit closed, upstream recovered")
		}
	} else {
		b.failureCount++
		b.lastFailureTime = b.now()
		switch {
		case b.state == StateHalfOpen:
			b.state = StateOpen
			b.halfOpenCalls = 0
			b.logger.Warn("probe failed, circuit re-opened")
		case b.state == StateClosed && b.failureCount >= b.config.Threshold:
			b.state = StateOpen
			b.logger.Warn("circuit opened",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold))
		}
	}

	to := b.state
	b.mu.Unlock()
	if from != to {
		b.notify(from, to)
	}
}

func (b *breaker) notify(from, to State) {
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}

// State 实现 CircuitBreaker.State
func (b *breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 实现 CircuitBreaker.Reset
func (b *breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenCalls = 0
	b.mu.Unlock()

	b.logger.Info("circuit reset", zap.String("from_state", from.String()))
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}
