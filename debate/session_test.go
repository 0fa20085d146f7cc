package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/debateflow/internal/ctxkeys"
	"github.com/BaSui01/debateflow/types"
)

// scriptedGenerator answers "argument <call>" unless reply is set, and fails
// once on each configured call index.
type scriptedGenerator struct {
	mu      sync.Mutex
	calls   int
	failAt  map[int]error
	reply   func(call int, persona string, window []Turn) string
	windows [][]Turn
	persona []string
}

func (g *scriptedGenerator) Generate(_ context.Context, persona string, window []Turn) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	call := g.calls
	g.calls++
	g.windows = append(g.windows, window)
	g.persona = append(g.persona, persona)
	if err, ok := g.failAt[call]; ok {
		delete(g.failAt, call)
		return "", err
	}
	if g.reply != nil {
		return g.reply(call, persona, window), nil
	}
	return fmt.Sprintf("argument %d", call), nil
}

func newTestSession(t *testing.T, budget int, opts ...Option) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TurnBudget = budget
	cfg.ContextWindow = 2
	opts = append([]Option{WithConfig(cfg), WithLogger(zaptest.NewLogger(t))}, opts...)
	s, err := NewSession("Is AI good for education?", DefaultParticipants("Is AI good for education?"), opts...)
	require.NoError(t, err)
	return s
}

func TestSession_RunAndFinalize(t *testing.T) {
	var observed []Turn
	s := newTestSession(t, 7, WithTurnObserver(func(t Turn) { observed = append(observed, t) }))
	gen := &scriptedGenerator{}

	require.NoError(t, s.Run(context.Background(), gen))
	assert.True(t, s.IsComplete())
	assert.Equal(t, StatusCompleted, s.Status())
	assert.Len(t, s.Turns(), 7)

	outcome, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, OutcomeForced, outcome)
	assert.Equal(t, StatusConcludedForced, s.Status())

	turns := s.Turns()
	require.Len(t, turns, 8)
	assert.Equal(t, "Host", turns[7].Speaker)
	assert.Len(t, observed, 8)

	_, err = s.Finalize()
	require.NoError(t, err)
	assert.Len(t, s.Turns(), 8)
}

func TestSession_UpstreamFailureAndResume(t *testing.T) {
	boom := errors.New("rate limited")
	gen := &scriptedGenerator{failAt: map[int]error{3: boom}}
	s := newTestSession(t, 7)

	err := s.Run(context.Background(), gen)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamUnavailable))
	assert.ErrorIs(t, err, boom)

	assert.Len(t, s.Turns(), 3)
	assert.False(t, s.IsComplete())
	assert.Equal(t, StatusPaused, s.Status())
	assert.Equal(t, "Host", s.NextSpeaker().Name)
	assert.Contains(t, s.State().Error, "UPSTREAM_UNAVAILABLE")

	turn, err := s.Step(context.Background(), gen)
	require.NoError(t, err)
	assert.Equal(t, 3, turn.Seq)
	assert.Equal(t, "Host", turn.Speaker)
	assert.Equal(t, StatusRunning, s.Status())
	assert.Empty(t, s.State().Error)
}

func TestSession_ContextWindowAndRoundHeader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TurnBudget = 4
	cfg.ContextWindow = 2
	cfg.AnnounceRounds = true
	s, err := NewSession("topic", DefaultParticipants("topic"), WithConfig(cfg))
	require.NoError(t, err)

	gen := &scriptedGenerator{}
	require.NoError(t, s.Run(context.Background(), gen))

	assert.Empty(t, gen.windows[0])
	assert.Len(t, gen.windows[1], 1)
	assert.Len(t, gen.windows[3], 2)
	assert.Equal(t, 1, gen.windows[3][0].Seq)

	assert.True(t, strings.HasPrefix(gen.persona[0], "This is round 1 of 2.\n\nYou are the host"))
	assert.True(t, strings.HasPrefix(gen.persona[3], "This is round 2 of 2."))
}

func TestSession_NaturalConclusion(t *testing.T) {
	s := newTestSession(t, 4)
	gen := &scriptedGenerator{reply: func(call int, _ string, _ []Turn) string {
		if call == 3 {
			return "Thanks all. OVERALL WINNER: Jack."
		}
		return "point"
	}}

	require.NoError(t, s.Run(context.Background(), gen))
	outcome, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, OutcomeNatural, outcome)
	assert.Equal(t, StatusConcludedNatural, s.Status())
	assert.Len(t, s.Turns(), 4)
}

func TestSession_FinalizeBeforeComplete(t *testing.T) {
	s := newTestSession(t, 5)
	_, err := s.Finalize()
	assert.True(t, types.IsErrorCode(err, types.ErrSessionNotComplete))
}

func TestSession_FinalizeWithFixedWinner(t *testing.T) {
	s := newTestSession(t, 2)
	require.NoError(t, s.Run(context.Background(), &scriptedGenerator{}))

	outcome, err := s.FinalizeWith(FixedWinnerStrategy{Winner: "John"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeForced, outcome)
	last := s.Turns()[2]
	assert.Contains(t, last.Content, "overall winner: John")
}

func TestSession_StepAfterBudget(t *testing.T) {
	s := newTestSession(t, 1)
	gen := &scriptedGenerator{}
	_, err := s.Step(context.Background(), gen)
	require.NoError(t, err)

	_, err = s.Step(context.Background(), gen)
	assert.True(t, types.IsErrorCode(err, types.ErrBudgetExhausted))
	assert.Equal(t, 1, gen.calls)
}

func TestSession_SingleWriter(t *testing.T) {
	s := newTestSession(t, 3)
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := GeneratorFunc(func(ctx context.Context, _ string, _ []Turn) (string, error) {
		close(entered)
		<-release
		return "slow answer", nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.Step(context.Background(), slow)
		done <- err
	}()
	<-entered

	_, err := s.Step(context.Background(), &scriptedGenerator{})
	assert.True(t, types.IsErrorCode(err, types.ErrSessionBusy))
	assert.True(t, types.IsErrorCode(s.Run(context.Background(), &scriptedGenerator{}), types.ErrSessionBusy))
	_, err = s.Finalize()
	assert.True(t, types.IsErrorCode(err, types.ErrSessionBusy))

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, s.Turns(), 1)
}

func TestSession_RunCancelled(t *testing.T) {
	s := newTestSession(t, 6)
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{reply: func(call int, _ string, _ []Turn) string {
		if call == 1 {
			cancel()
		}
		return "ok"
	}}

	err := s.Run(ctx, gen)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, s.Turns(), 2)
	assert.Equal(t, StatusPaused, s.Status())
}

func TestSession_CancelledDuringGeneration(t *testing.T) {
	s := newTestSession(t, 6)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := GeneratorFunc(func(ctx context.Context, _ string, _ []Turn) (string, error) {
		cancel()
		return "", ctx.Err()
	})

	err := s.Run(ctx, gen)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, types.IsErrorCode(err, types.ErrUpstreamUnavailable))
	assert.False(t, types.IsRetryable(err))

	assert.Empty(t, s.Turns())
	assert.Equal(t, StatusPaused, s.Status())
	assert.Equal(t, "Host", s.NextSpeaker().Name)

	turn, err := s.Step(context.Background(), &scriptedGenerator{})
	require.NoError(t, err)
	assert.Equal(t, 0, turn.Seq)
}

func TestSession_GeneratorTimeoutIsUpstreamFailure(t *testing.T) {
	s := newTestSession(t, 3)
	gen := GeneratorFunc(func(context.Context, string, []Turn) (string, error) {
		return "", fmt.Errorf("claude: %w", context.DeadlineExceeded)
	})

	_, err := s.Step(context.Background(), gen)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamUnavailable))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSession_EmptyContentPauses(t *testing.T) {
	s := newTestSession(t, 3)
	gen := GeneratorFunc(func(context.Context, string, []Turn) (string, error) { return "  ", nil })

	_, err := s.Step(context.Background(), gen)
	assert.True(t, types.IsErrorCode(err, types.ErrEmptyContent))
	assert.Empty(t, s.Turns())
	assert.Equal(t, StatusPaused, s.Status())
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(" ", DefaultParticipants("x"))
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))

	_, err = NewSession("x", DefaultParticipants("x")[:1])
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))

	_, err = NewSession("x", []Participant{
		{Name: "A", Role: RoleProponent},
		{Name: "B", Role: RoleOpponent},
	})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))

	_, err = NewSession("x", []Participant{
		{Name: "A", Role: RoleModerator},
		{Name: "A", Role: RoleOpponent},
	})
	assert.True(t, types.IsErrorCode(err, types.ErrDuplicateIdentity))

	cfg := DefaultConfig()
	cfg.ContentPolicy = "shrug"
	_, err = NewSession("x", DefaultParticipants("x"), WithConfig(cfg))
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))
}

func TestSession_State(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestSession(t, 3, WithClock(func() time.Time { return fixed }))
	_, err := s.Step(context.Background(), &scriptedGenerator{})
	require.NoError(t, err)

	st := s.State()
	assert.Equal(t, s.ID, st.ID)
	assert.Equal(t, "John", st.NextSpeaker)
	assert.Equal(t, 1, st.TotalRounds)
	assert.Equal(t, 3, st.TurnBudget)
	assert.Equal(t, StatusRunning, st.Status)
	assert.Equal(t, fixed, st.CreatedAt)
	assert.Equal(t, fixed, st.Turns[0].Timestamp)
	assert.Empty(t, st.Outcome)
}

func TestSession_GeneratorContextCarriesSpeaker(t *testing.T) {
	s := newTestSession(t, 2)
	var seen []string
	gen := GeneratorFunc(func(ctx context.Context, _ string, _ []Turn) (string, error) {
		name, _ := ctxkeys.Speaker(ctx)
		id, _ := ctxkeys.SessionID(ctx)
		assert.Equal(t, s.ID, id)
		seen = append(seen, name)
		return "ok", nil
	})
	require.NoError(t, s.Run(context.Background(), gen))
	assert.Equal(t, []string{"Host", "John"}, seen)
}

func TestSession_CustomClosingPredicate(t *testing.T) {
	verdict := func(turn Turn) bool { return strings.Contains(turn.Content, "VERDICT") }

	t.Run("forced conclusion embeds marker", func(t *testing.T) {
		s := newTestSession(t, 4, WithClosingPredicateOption(verdict, "VERDICT"))
		require.NoError(t, s.Run(context.Background(), &scriptedGenerator{}))

		outcome, err := s.Finalize()
		require.NoError(t, err)
		assert.Equal(t, OutcomeForced, outcome)

		turns := s.Turns()
		require.Len(t, turns, 5)
		assert.Contains(t, turns[4].Content, "VERDICT")
	})

	t.Run("moderator verdict concludes naturally", func(t *testing.T) {
		gen := &scriptedGenerator{reply: func(call int, _ string, _ []Turn) string {
			if call == 3 {
				return "The VERDICT is in."
			}
			return "point"
		}}
		s := newTestSession(t, 4, WithClosingPredicateOption(verdict, "VERDICT"))
		require.NoError(t, s.Run(context.Background(), gen))

		outcome, err := s.Finalize()
		require.NoError(t, err)
		assert.Equal(t, OutcomeNatural, outcome)
		assert.Len(t, s.Turns(), 4)
	})
}
