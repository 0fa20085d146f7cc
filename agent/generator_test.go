package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/ctxkeys"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/llm"
	"github.com/BaSui01/debateflow/llm/circuitbreaker"
	"github.com/BaSui01/debateflow/llm/retry"
	"github.com/BaSui01/debateflow/types"
)

// fakeProvider 按脚本返回响应或错误
type fakeProvider struct {
	mu       sync.Mutex
	requests []*llm.ChatRequest
	errs     []error
	reply    string
	empty    bool
}

func (p *fakeProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	if p.empty {
		return &llm.ChatResponse{Model: "fake-model"}, nil
	}
	return &llm.ChatResponse{
		Model: "fake-model",
		Choices: []llm.ChatChoice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: "  " + p.reply + "\n"},
		}},
		Usage: llm.ChatUsage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20},
	}, nil
}

func (p *fakeProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Message: "ok"}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func fastRetry(maxRetries int) Option {
	return WithRetryPolicy(&retry.RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	})
}

var metricsNamespaceSeq uint64

func nextTestNamespace() string {
	return fmt.Sprintf("agent_test_%d", atomic.AddUint64(&metricsNamespaceSeq, 1))
}

func speakerCtx(name string) context.Context {
	ctx := ctxkeys.WithSessionID(context.Background(), "sess-1")
	ctx = ctxkeys.WithRound(ctx, 2)
	return ctxkeys.WithSpeaker(ctx, name)
}

// =============================================================================
// 🧪 BuildMessages
// =============================================================================

func TestBuildMessages_EmptyWindow(t *testing.T) {
	msgs := BuildMessages("AI in schools", "You are Host.", "Host", nil)

	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You are Host.", msgs[0].Content)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, debate.Opening("AI in schools"), msgs[1].Content)
}

func TestBuildMessages_RolesFollowSpeaker(t *testing.T) {
	window := []debate.Turn{
		{Seq: 0, Speaker: "Host", Content: "Welcome."},
		{Seq: 1, Speaker: "John", Content: "AI helps."},
		{Seq: 2, Speaker: "Jack", Content: "AI harms."},
	}

	msgs := BuildMessages("t", "persona", "John", window)
	require.Len(t, msgs, 5)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Host: Welcome.", Name: "Host"}, msgs[2])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "AI helps."}, msgs[3])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Jack: AI harms.", Name: "Jack"}, msgs[4])
}

func TestBuildMessages_NoPersona(t *testing.T) {
	msgs := BuildMessages("t", "", "", []debate.Turn{{Speaker: "Host", Content: "hi"}})
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "Host: hi", msgs[1].Content)
}

// =============================================================================
// 🧪 Generate
// =============================================================================

func TestLLMGenerator_Generate(t *testing.T) {
	provider := &fakeProvider{reply: "Strong point."}
	ns := nextTestNamespace()
	collector := metrics.NewCollector(ns, nil)
	g, err := NewLLMGenerator(provider, Config{Topic: "AI", Model: "m", MaxTokens: 64, Temperature: 0.5},
		WithLogger(zaptest.NewLogger(t)), WithMetrics(collector), fastRetry(0))
	require.NoError(t, err)

	ctx := ctxkeys.WithTraceID(speakerCtx("John"), "req-7")
	out, err := g.Generate(ctx, "You are John.", []debate.Turn{{Speaker: "Host", Content: "Go."}})
	require.NoError(t, err)
	assert.Equal(t, "Strong point.", out)

	require.Equal(t, 1, provider.calls())
	req := provider.requests[0]
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, 64, req.MaxTokens)
	assert.Equal(t, "req-7", req.TraceID)
	assert.Equal(t, "John", req.Metadata["speaker"])
	assert.Equal(t, "sess-1", req.Metadata["session_id"])
	assert.Len(t, req.Messages, 3)

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, ns+"_llm_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLLMGenerator_RetriesRetryableErrors(t *testing.T) {
	provider := &fakeProvider{
		reply: "ok",
		errs:  []error{&llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}},
	}
	g, err := NewLLMGenerator(provider, Config{Topic: "AI"}, fastRetry(2))
	require.NoError(t, err)

	out, err := g.Generate(speakerCtx("Jack"), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, provider.calls())
}

func TestLLMGenerator_NonRetryableBecomesUpstreamUnavailable(t *testing.T) {
	cause := &llm.Error{Code: llm.ErrUnauthorized, Message: "bad key", HTTPStatus: 401}
	provider := &fakeProvider{errs: []error{cause}}
	g, err := NewLLMGenerator(provider, Config{Topic: "AI"}, fastRetry(3))
	require.NoError(t, err)

	_, err = g.Generate(speakerCtx("Host"), "p", nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, provider.calls())
}

// cancellingProvider 在请求中途取消调用方的 context
type cancellingProvider struct {
	fakeProvider
	cancel context.CancelFunc
}

func (p *cancellingProvider) Completion(ctx context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.cancel()
	return nil, ctx.Err()
}

func TestLLMGenerator_CancelledIsNotUpstreamFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(speakerCtx("Host"))
	defer cancel()

	g, err := NewLLMGenerator(&cancellingProvider{cancel: cancel}, Config{Topic: "AI"}, fastRetry(2))
	require.NoError(t, err)

	_, err = g.Generate(ctx, "p", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, types.IsErrorCode(err, types.ErrUpstreamUnavailable))
	assert.False(t, types.IsRetryable(err))
}

func TestLLMGenerator_EmptyChoices(t *testing.T) {
	g, err := NewLLMGenerator(&fakeProvider{empty: true}, Config{Topic: "AI"}, fastRetry(0))
	require.NoError(t, err)

	_, err = g.Generate(speakerCtx("Host"), "p", nil)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamUnavailable))
	assert.Contains(t, err.Error(), "empty choice list")
}

func TestLLMGenerator_BreakerOpens(t *testing.T) {
	failure := &llm.Error{Code: llm.ErrUpstreamError, Message: "502", Retryable: true}
	provider := &fakeProvider{errs: []error{failure, failure, failure}}

	var transitions []string
	g, err := NewLLMGenerator(provider, Config{Topic: "AI"}, fastRetry(0),
		WithBreakerConfig(&circuitbreaker.Config{
			Threshold:    2,
			ResetTimeout: time.Hour,
			OnStateChange: func(from, to circuitbreaker.State) {
				transitions = append(transitions, to.String())
			},
		}))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = g.Generate(speakerCtx("Host"), "p", nil)
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.Breaker().State())
	assert.Equal(t, []string{"open"}, transitions)

	_, err = g.Generate(speakerCtx("Host"), "p", nil)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, provider.calls())
}

func TestLLMGenerator_DefaultBreakerReportsState(t *testing.T) {
	failure := &llm.Error{Code: llm.ErrUpstreamError, Message: "502", Retryable: true}
	provider := &fakeProvider{errs: []error{failure}}
	ns := nextTestNamespace()
	collector := metrics.NewCollector(ns, nil)
	g, err := NewLLMGenerator(provider, Config{}, fastRetry(0), WithMetrics(collector),
		WithBreakerConfig(&circuitbreaker.Config{Threshold: 1, ResetTimeout: time.Hour}))
	require.NoError(t, err)

	_, err = g.Generate(speakerCtx("Host"), "p", nil)
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, g.Breaker().State())

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, ns+"_llm_circuit_breaker_state")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLLMGenerator_Span(t *testing.T) {
	orig := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	g, err := NewLLMGenerator(&fakeProvider{reply: "ok"}, Config{Topic: "AI"}, fastRetry(0))
	require.NoError(t, err)
	_, err = g.Generate(speakerCtx("John"), "p", nil)
	require.NoError(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "debate.generate", ended[0].Name())
}

func TestLLMGenerator_ForTopicSharesBreaker(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	g, err := NewLLMGenerator(provider, Config{Topic: "first"}, fastRetry(0))
	require.NoError(t, err)

	other := g.ForTopic("second")
	assert.Equal(t, "first", g.Topic())
	assert.Equal(t, "second", other.Topic())
	assert.Same(t, g.Breaker(), other.Breaker())

	_, err = other.Generate(speakerCtx("Host"), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, debate.Opening("second"), provider.requests[0].Messages[1].Content)
}

func TestNewLLMGenerator_RequiresProvider(t *testing.T) {
	_, err := NewLLMGenerator(nil, Config{})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))
}

func TestLLMGenerator_DrivesSession(t *testing.T) {
	provider := &fakeProvider{reply: "A fair point."}
	g, err := NewLLMGenerator(provider, Config{Topic: "AI"}, fastRetry(0))
	require.NoError(t, err)

	cfg := debate.DefaultConfig()
	cfg.TurnBudget = 4
	s, err := debate.NewSession("AI", debate.DefaultParticipants("AI"), debate.WithConfig(cfg))
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background(), g))
	assert.Len(t, s.Turns(), 4)

	// 第 4 回合是 Host 再次发言，自己第 0 回合的发言应作为 assistant 回放
	last := provider.requests[3]
	var roles []llm.Role
	for _, m := range last.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser, llm.RoleUser}, roles)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "LLM_RATE_LIMITED", errorCode(&llm.Error{Code: llm.ErrRateLimited}))
	assert.Equal(t, "CANCELLED", errorCode(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.Equal(t, "LLM_UPSTREAM_TIMEOUT", errorCode(context.DeadlineExceeded))
	assert.Equal(t, "UNKNOWN", errorCode(errors.New("boom")))
}
