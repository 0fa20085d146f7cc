package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/ctxkeys"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/llm"
	"github.com/BaSui01/debateflow/llm/circuitbreaker"
	"github.com/BaSui01/debateflow/llm/retry"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🤖 LLM 回合生成器
// =============================================================================

// Config 生成器配置
type Config struct {
	// Topic 辩题，窗口为空时用于开场指令
	Topic string
	// Model 模型名称，为空时由 Provider 决定
	Model string
	// MaxTokens 单次回复上限
	MaxTokens int
	// Temperature 温度
	Temperature float32
}

// Option 生成器选项
type Option func(*LLMGenerator)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(g *LLMGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRetryer 设置重试器；默认使用 retry.DefaultRetryPolicy
func WithRetryer(r retry.Retryer) Option {
	return func(g *LLMGenerator) { g.retryer = r }
}

// WithRetryPolicy 用指定策略构造指数退避重试器
func WithRetryPolicy(p *retry.RetryPolicy) Option {
	return func(g *LLMGenerator) { g.retryPolicy = p }
}

// WithCircuitBreaker 设置熔断器；默认使用 circuitbreaker.DefaultConfig
func WithCircuitBreaker(cb circuitbreaker.CircuitBreaker) Option {
	return func(g *LLMGenerator) { g.breaker = cb }
}

// WithBreakerConfig 用指定配置构造熔断器，未设置 OnStateChange 时挂接指标与日志
func WithBreakerConfig(c *circuitbreaker.Config) Option {
	return func(g *LLMGenerator) { g.breakerConfig = c }
}

// WithMetrics 设置 Prometheus 指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(g *LLMGenerator) { g.metrics = c }
}

// LLMGenerator 通过 llm.Provider 生成辩论发言，实现 debate.Generator
type LLMGenerator struct {
	provider llm.Provider
	config   Config
	retryer  retry.Retryer
	breaker  circuitbreaker.CircuitBreaker
	metrics  *metrics.Collector
	otel     *instruments
	logger   *zap.Logger

	retryPolicy   *retry.RetryPolicy
	breakerConfig *circuitbreaker.Config
}

var _ debate.Generator = (*LLMGenerator)(nil)

// NewLLMGenerator 创建生成器
func NewLLMGenerator(provider llm.Provider, config Config, opts ...Option) (*LLMGenerator, error) {
	if provider == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "llm provider is required")
	}

	g := &LLMGenerator{
		provider: provider,
		config:   config,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("component", "llm_generator"), zap.String("provider", provider.Name()))

	if g.retryer == nil {
		g.retryer = retry.NewBackoffRetryer(g.retryPolicy, g.logger)
	}
	if g.breaker == nil {
		cbConfig := circuitbreaker.DefaultConfig()
		if g.breakerConfig != nil {
			c := *g.breakerConfig
			cbConfig = &c
		}
		if cbConfig.OnStateChange == nil {
			cbConfig.OnStateChange = g.onBreakerStateChange
		}
		g.breaker = circuitbreaker.NewCircuitBreaker(cbConfig, g.logger)
	}

	in, err := newInstruments()
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "create generator instruments").WithCause(err)
	}
	g.otel = in

	return g, nil
}

// ForTopic 返回共享 Provider、重试器与熔断器的新辩题生成器
func (g *LLMGenerator) ForTopic(topic string) *LLMGenerator {
	cp := *g
	cp.config.Topic = topic
	return &cp
}

// Topic 当前辩题
func (g *LLMGenerator) Topic() string {
	return g.config.Topic
}

// Breaker 暴露熔断器状态，供健康检查使用
func (g *LLMGenerator) Breaker() circuitbreaker.CircuitBreaker {
	return g.breaker
}

// onBreakerStateChange 熔断器状态变更回调
func (g *LLMGenerator) onBreakerStateChange(from, to circuitbreaker.State) {
	g.logger.Warn("circuit breaker state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()))
	if g.metrics != nil {
		g.metrics.SetBreakerState(g.provider.Name(), int(to))
	}
}

// Generate 生成一条发言
func (g *LLMGenerator) Generate(ctx context.Context, persona string, window []debate.Turn) (string, error) {
	speaker, _ := ctxkeys.Speaker(ctx)
	sessionID, _ := ctxkeys.SessionID(ctx)
	round, _ := ctxkeys.Round(ctx)

	attrs := turnAttrs{
		SessionID: sessionID,
		Speaker:   speaker,
		Round:     round,
		Provider:  g.provider.Name(),
		Model:     g.config.Model,
	}
	ctx, span := g.otel.start(ctx, attrs)

	req := &llm.ChatRequest{
		Model:       g.config.Model,
		Messages:    BuildMessages(g.config.Topic, persona, speaker, window),
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
		Metadata:    map[string]string{"session_id": sessionID, "speaker": speaker},
	}
	if traceID, ok := ctxkeys.TraceID(ctx); ok {
		req.TraceID = traceID
	}

	start := time.Now()
	resp, err := retry.DoTyped(g.retryer, ctx, func() (*llm.ChatResponse, error) {
		return circuitbreaker.CallTyped(g.breaker, ctx, func(ctx context.Context) (*llm.ChatResponse, error) {
			return g.provider.Completion(ctx, req)
		})
	})
	elapsed := time.Since(start)

	var content string
	if err == nil {
		var ok bool
		content, ok = resp.FirstContent()
		if !ok {
			err = &llm.Error{Code: llm.ErrUpstreamError, Message: "empty choice list", Provider: g.provider.Name()}
		}
	}

	if err != nil && ctx.Err() != nil {
		// 调用方取消或超时不算上游故障
		span.SetStatus(codes.Error, ctx.Err().Error())
		g.otel.end(ctx, span, attrs, "cancelled", errorCode(ctx.Err()), 0, 0, elapsed)
		if g.metrics != nil {
			g.metrics.RecordLLMRequest(g.provider.Name(), g.config.Model, "cancelled", elapsed, 0, 0)
		}
		g.logger.Debug("turn generation cancelled",
			zap.String("speaker", speaker),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", fmt.Errorf("generate turn for %s: %w", speakerOrUnknown(speaker), ctx.Err())
	}

	if err != nil {
		code := errorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.otel.end(ctx, span, attrs, "error", code, 0, 0, elapsed)
		if g.metrics != nil {
			g.metrics.RecordLLMRequest(g.provider.Name(), g.config.Model, "error", elapsed, 0, 0)
		}
		g.logger.Warn("turn generation failed",
			zap.String("speaker", speaker),
			zap.String("error_code", code),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", types.Errorf(types.ErrUpstreamUnavailable, "generate turn for %s", speakerOrUnknown(speaker)).
			WithCause(err).
			WithRetryable(true)
	}

	model := resp.Model
	if model == "" {
		model = g.config.Model
	}
	g.otel.end(ctx, span, attrs, "success", "", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, elapsed)
	if g.metrics != nil {
		g.metrics.RecordLLMRequest(g.provider.Name(), model, "success", elapsed, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	g.logger.Debug("turn generated",
		zap.String("speaker", speaker),
		zap.Int("round", round),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", elapsed))

	return strings.TrimSpace(content), nil
}

// HealthCheck 检查上游连通性（dashboard 的 "Test API Connection"）
func (g *LLMGenerator) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return g.provider.HealthCheck(ctx)
}

// =============================================================================
// 🧩 消息构造
// =============================================================================

// BuildMessages 把人设与上下文窗口转换为聊天消息。
// 开场指令总是第一条用户消息；当前发言者自己说过的话作为 assistant，
// 其余人的发言作为带 "Name: " 前缀的 user 消息。
func BuildMessages(topic, persona, speaker string, window []debate.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(window)+2)
	if persona != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: persona})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: debate.Opening(topic)})

	for _, t := range window {
		if speaker != "" && t.Speaker == speaker {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
			continue
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Speaker + ": " + t.Content, Name: t.Speaker})
	}
	return msgs
}

func errorCode(err error) string {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return string(llmErr.Code)
	}
	if errors.Is(err, context.Canceled) {
		return "CANCELLED"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(llm.ErrUpstreamTimeout)
	}
	return "UNKNOWN"
}

func speakerOrUnknown(name string) string {
	if name == "" {
		return "unknown speaker"
	}
	return name
}
