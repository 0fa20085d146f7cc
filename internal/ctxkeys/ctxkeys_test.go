package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	_, ok := Speaker(ctx)
	assert.False(t, ok)

	ctx = WithSpeaker(WithSessionID(WithTraceID(ctx, "req-1"), "sess-1"), "John")
	ctx = WithRound(ctx, 2)

	v, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", v)

	v, _ = SessionID(ctx)
	assert.Equal(t, "sess-1", v)

	v, _ = Speaker(ctx)
	assert.Equal(t, "John", v)

	r, ok := Round(ctx)
	assert.True(t, ok)
	assert.Equal(t, 2, r)

	sub, ok := Subject(WithSubject(ctx, "dashboard"))
	assert.True(t, ok)
	assert.Equal(t, "dashboard", sub)

	_, ok = TraceID(WithTraceID(context.Background(), ""))
	assert.False(t, ok)
}
