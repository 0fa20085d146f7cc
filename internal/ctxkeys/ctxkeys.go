package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	sessionIDKey contextKey = "session_id"
	speakerKey   contextKey = "speaker"
	roundKey     contextKey = "round"
	subjectKey   contextKey = "subject"
)

// WithTraceID 设置 TraceID（通常来自 X-Request-ID）
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceIDKey)
}

// WithSessionID 设置辩论会话 ID
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID 获取辩论会话 ID
func SessionID(ctx context.Context) (string, bool) {
	return stringValue(ctx, sessionIDKey)
}

// WithSpeaker 设置当前发言者名称
func WithSpeaker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, speakerKey, name)
}

// Speaker 获取当前发言者名称
func Speaker(ctx context.Context) (string, bool) {
	return stringValue(ctx, speakerKey)
}

// WithRound 设置当前轮次（从 1 开始）
func WithRound(ctx context.Context, round int) context.Context {
	return context.WithValue(ctx, roundKey, round)
}

// Round 获取当前轮次
func Round(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(roundKey).(int)
	return v, ok
}

// WithSubject 设置已认证调用方（JWT sub）
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey, sub)
}

// Subject 获取已认证调用方
func Subject(ctx context.Context) (string, bool) {
	return stringValue(ctx, subjectKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
