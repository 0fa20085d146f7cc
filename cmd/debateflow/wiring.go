package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/agent"
	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/llm/circuitbreaker"
	"github.com/BaSui01/debateflow/llm/providers"
	claude "github.com/BaSui01/debateflow/llm/providers/anthropic"
	"github.com/BaSui01/debateflow/llm/retry"
)

// =============================================================================
// 🔌 组件装配（run 与 serve 共用）
// =============================================================================

// buildDebateConfig 把配置文件中的辩论参数转换为会话配置
func buildDebateConfig(cfg config.DebateConfig) (debate.Config, error) {
	strategy, err := debate.ParseStrategy(cfg.ConclusionStrategy, int64(cfg.Seed))
	if err != nil {
		return debate.Config{}, err
	}

	out := debate.DefaultConfig()
	out.TurnBudget = cfg.TurnBudget
	out.ContextWindow = cfg.ContextWindow
	out.OneBasedRounds = cfg.OneBasedRounds
	out.AnnounceRounds = cfg.AnnounceRounds
	out.Strategy = strategy
	if cfg.ContentPolicy != "" {
		out.ContentPolicy = debate.ContentPolicy(cfg.ContentPolicy)
	}
	if len(cfg.ClosingMarkers) > 0 {
		out.ClosingMarkers = append([]string(nil), cfg.ClosingMarkers...)
	}
	return out, nil
}

// participantFactory 返回按辩题生成发言人的函数。
// 配置了参与者时，persona 中的 {topic} 会被替换为辩题。
func participantFactory(list []config.ParticipantConfig) (func(topic string) []debate.Participant, error) {
	if len(list) == 0 {
		return debate.DefaultParticipants, nil
	}

	templates := make([]debate.Participant, 0, len(list))
	for i, p := range list {
		role, err := debate.ParseRole(p.Role)
		if err != nil {
			return nil, fmt.Errorf("participants[%d]: %w", i, err)
		}
		templates = append(templates, debate.Participant{Name: p.Name, Role: role, Persona: p.Persona})
	}

	return func(topic string) []debate.Participant {
		out := make([]debate.Participant, len(templates))
		for i, p := range templates {
			p.Persona = strings.ReplaceAll(p.Persona, "{topic}", topic)
			out[i] = p
		}
		return out
	}, nil
}

// buildGenerator 创建 Claude Provider 并包装为带重试与熔断的回合生成器
func buildGenerator(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*agent.LLMGenerator, *claude.ClaudeProvider, error) {
	provider := claude.NewClaudeProvider(providers.ClaudeConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		},
	}, logger)

	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = cfg.LLM.MaxRetries

	breaker := circuitbreaker.DefaultConfig()
	if cfg.LLM.BreakerThreshold > 0 {
		breaker.Threshold = cfg.LLM.BreakerThreshold
	}
	if cfg.LLM.BreakerReset > 0 {
		breaker.ResetTimeout = cfg.LLM.BreakerReset
	}

	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithRetryPolicy(policy),
		agent.WithBreakerConfig(breaker),
	}
	if collector != nil {
		opts = append(opts, agent.WithMetrics(collector))
	}

	gen, err := agent.NewLLMGenerator(provider, agent.Config{
		Topic:       cfg.Debate.Topic,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, opts...)
	if err != nil {
		return nil, nil, err
	}
	return gen, provider, nil
}
