package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/types"
)

const testTopic = "Remote work beats office work"

func newTestSession(t *testing.T, budget int) *debate.Session {
	t.Helper()
	cfg := debate.DefaultConfig()
	cfg.TurnBudget = budget
	sess, err := debate.NewSession(testTopic, debate.DefaultParticipants(testTopic), debate.WithConfig(cfg))
	require.NoError(t, err)
	return sess
}

// countingGenerator 第 failAt 次调用（从 0 开始）返回错误，failAt < 0 表示从不失败
func countingGenerator(failAt int) debate.Generator {
	n := 0
	return debate.GeneratorFunc(func(ctx context.Context, persona string, window []debate.Turn) (string, error) {
		defer func() { n++ }()
		if n == failAt {
			return "", errors.New("connection refused")
		}
		return fmt.Sprintf("point %d", n), nil
	})
}

// =============================================================================
// 🧪 Printer
// =============================================================================

func TestPrinter_PrintTurn(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, debate.DefaultParticipants(testTopic))

	p.PrintTurn(debate.Turn{Seq: 0, Speaker: "Host", Content: "Welcome everyone."})
	p.PrintTurn(debate.Turn{Seq: 1, Speaker: "John", Content: "Commutes waste hours."})

	want := Rule + "\nHost: Welcome everyone.\n" + Rule + "\nJohn: Commutes waste hours.\n"
	assert.Equal(t, want, buf.String())
	assert.Len(t, Rule, 40)
}

func TestPrinter_WithIcons(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, debate.DefaultParticipants(testTopic), WithIcons())

	p.PrintTurn(debate.Turn{Speaker: "Jack", Content: "Offices build culture."})
	assert.Contains(t, buf.String(), "👎 Jack: Offices build culture.")
}

func TestPrinter_AsTurnObserver(t *testing.T) {
	var buf bytes.Buffer
	participants := debate.DefaultParticipants(testTopic)
	p := NewPrinter(&buf, participants)

	cfg := debate.DefaultConfig()
	cfg.TurnBudget = 3
	sess, err := debate.NewSession(testTopic, participants, debate.WithConfig(cfg), debate.WithTurnObserver(p.PrintTurn))
	require.NoError(t, err)

	require.NoError(t, sess.Run(context.Background(), countingGenerator(-1)))
	_, err = sess.Finalize()
	require.NoError(t, err)
	p.PrintStop(StopReason(sess.State(), nil))

	out := buf.String()
	assert.Equal(t, 5, strings.Count(out, Rule), "3 turns, 1 closing turn, 1 stop line")
	assert.Contains(t, out, "Stopping reason :Maximum number of turns 3 reached. Closing statement added.")
}

func TestStopReason(t *testing.T) {
	st := debate.State{TurnBudget: 10, Turns: make([]debate.Turn, 3)}

	assert.Equal(t, "Maximum number of turns 10 reached.", StopReason(st, nil))

	st.Outcome = debate.OutcomeNatural
	assert.Contains(t, StopReason(st, nil), "Winner announced")

	upstream := types.NewError(types.ErrUpstreamUnavailable, "generating turn 3").WithCause(errors.New("dial tcp: refused"))
	assert.Equal(t, "debate paused at turn 3: dial tcp: refused", StopReason(st, upstream))

	assert.Equal(t, "debate stopped at turn 3: boom", StopReason(st, errors.New("boom")))
}

// =============================================================================
// 🧪 Watch model
// =============================================================================

// drive 手动执行命令直到模型结束，tea.Batch 之外的命令逐个展开
func drive(t *testing.T, m watchModel, cmd tea.Cmd) watchModel {
	t.Helper()
	for i := 0; i < 100 && cmd != nil && !m.done; i++ {
		msg := cmd()
		next, nextCmd := m.Update(msg)
		m = next.(watchModel)
		cmd = nextCmd
	}
	return m
}

func TestWatchModel_RunsToConclusion(t *testing.T) {
	sess := newTestSession(t, 4)
	m := newWatchModel(context.Background(), sess, countingGenerator(-1), 0)
	assert.Equal(t, "Host", m.typing)
	assert.Contains(t, m.View(), "Host is typing...")

	m = drive(t, m, m.step())

	require.True(t, m.done)
	require.NoError(t, m.err)
	assert.Len(t, m.turns, 5, "four turns plus the closing turn")
	assert.Equal(t, debate.OutcomeForced, m.outcome)
	assert.Empty(t, m.typing)

	view := m.View()
	assert.Contains(t, view, "🏁 Maximum number of turns 4 reached.")
	assert.NotContains(t, view, "q to quit")
}

func TestWatchModel_TypingDelayHoldsTurn(t *testing.T) {
	sess := newTestSession(t, 3)
	m := newWatchModel(context.Background(), sess, countingGenerator(-1), time.Second)

	msg := m.step()()
	turn, ok := msg.(turnMsg)
	require.True(t, ok)

	next, cmd := m.Update(turnMsg{turn: turn.turn, took: 0})
	m = next.(watchModel)
	assert.NotNil(t, cmd, "reveal is scheduled")
	assert.Empty(t, m.turns, "turn is held while typing")
	assert.Equal(t, "Host", m.typing)

	next, _ = m.Update(revealMsg{turn: turn.turn})
	m = next.(watchModel)
	require.Len(t, m.turns, 1)
	assert.Equal(t, "John", m.typing)
}

func TestWatchModel_UpstreamFailurePauses(t *testing.T) {
	sess := newTestSession(t, 6)
	m := newWatchModel(context.Background(), sess, countingGenerator(2), 0)

	m = drive(t, m, m.step())

	require.True(t, m.done)
	require.Error(t, m.err)
	assert.True(t, types.IsErrorCode(m.err, types.ErrUpstreamUnavailable))
	assert.Len(t, m.turns, 2)
	assert.Contains(t, m.View(), "debate paused at turn 2")
	assert.Equal(t, debate.StatusPaused, sess.Status())
}

func TestWatchModel_QuitKey(t *testing.T) {
	sess := newTestSession(t, 3)
	m := newWatchModel(context.Background(), sess, countingGenerator(-1), 0)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(watchModel)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestWatchModel_AlreadyCompleteFinalizesImmediately(t *testing.T) {
	sess := newTestSession(t, 2)
	require.NoError(t, sess.Run(context.Background(), countingGenerator(-1)))

	m := newWatchModel(context.Background(), sess, countingGenerator(-1), 0)
	assert.Empty(t, m.typing)
	m = drive(t, m, m.Init())

	assert.True(t, m.done)
	assert.Len(t, m.turns, 3)
}
