package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/debateflow/internal/telemetry"
)

// instruments 回合生成的 OTel 追踪与指标
type instruments struct {
	tracer trace.Tracer
	// 柜台
	turnTotal  metric.Int64Counter
	tokenTotal metric.Int64Counter
	errorTotal metric.Int64Counter
	// 直方图
	turnDuration metric.Float64Histogram
}

func newInstruments() (*instruments, error) {
	meter := telemetry.Meter()
	in := &instruments{tracer: telemetry.Tracer()}

	var err error
	in.turnTotal, err = meter.Int64Counter("debate.turn.generated",
		metric.WithDescription("Turns requested from the language model"),
		metric.WithUnit("{turn}"))
	if err != nil {
		return nil, err
	}

	in.tokenTotal, err = meter.Int64Counter("debate.turn.tokens",
		metric.WithDescription("Tokens consumed generating turns"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	in.errorTotal, err = meter.Int64Counter("debate.turn.errors",
		metric.WithDescription("Turns that failed to generate"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	in.turnDuration, err = meter.Float64Histogram("debate.turn.duration",
		metric.WithDescription("Turn generation latency in seconds, retries included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 1, 2.5, 5, 10, 30, 60))
	if err != nil {
		return nil, err
	}

	return in, nil
}

// turnAttrs 单次生成的属性
type turnAttrs struct {
	SessionID string
	Speaker   string
	Round     int
	Provider  string
	Model     string
}

func (a turnAttrs) kv() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("debate.speaker", a.Speaker),
		attribute.String("llm.provider", a.Provider),
		attribute.String("llm.model", a.Model),
	}
}

// start 打开 debate.generate span
func (in *instruments) start(ctx context.Context, a turnAttrs) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "debate.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(a.kv(),
			attribute.String("debate.session_id", a.SessionID),
			attribute.Int("debate.round", a.Round))...))
}

// end 记录指标并结束 span
func (in *instruments) end(ctx context.Context, span trace.Span, a turnAttrs, status string, errorCode string, promptTokens, completionTokens int, d time.Duration) {
	defer span.End()

	common := append(a.kv(), attribute.String("status", status))
	in.turnTotal.Add(ctx, 1, metric.WithAttributes(common...))
	in.turnDuration.Record(ctx, d.Seconds(), metric.WithAttributes(common...))

	if promptTokens+completionTokens > 0 {
		in.tokenTotal.Add(ctx, int64(promptTokens), metric.WithAttributes(append(a.kv(), attribute.String("type", "prompt"))...))
		in.tokenTotal.Add(ctx, int64(completionTokens), metric.WithAttributes(append(a.kv(), attribute.String("type", "completion"))...))
	}

	if errorCode != "" {
		in.errorTotal.Add(ctx, 1, metric.WithAttributes(append(a.kv(), attribute.String("error_code", errorCode))...))
		span.SetAttributes(attribute.String("error.code", errorCode))
	}

	span.SetAttributes(
		attribute.String("llm.status", status),
		attribute.Int("llm.tokens.prompt", promptTokens),
		attribute.Int("llm.tokens.completion", completionTokens),
		attribute.Float64("llm.duration_ms", float64(d.Milliseconds())))
}
