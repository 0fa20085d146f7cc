package debate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/types"
)

func fillLog(t *testing.T, r *Registry, contents ...string) *Log {
	t.Helper()
	l := NewLog(r)
	order := r.Ordered()
	for i, c := range contents {
		require.NoError(t, l.Append(Turn{Seq: i, Speaker: order[i%len(order)].Name, Content: c}))
	}
	return l
}

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, p := range DefaultParticipants("remote work") {
		require.NoError(t, r.Register(p))
	}
	return r
}

func TestMarkerPredicate(t *testing.T) {
	pred := MarkerPredicate(DefaultClosingMarkers...)
	assert.True(t, pred(Turn{Content: "The OVERALL WINNER is John"}))
	assert.True(t, pred(Turn{Content: "Winner: Jack"}))
	assert.False(t, pred(Turn{Content: "We have a winner soon"}))
	assert.False(t, MarkerPredicate("", "  ")(Turn{Content: "anything"}))
}

func TestGuarantor_ForcedConclusion(t *testing.T) {
	r := defaultRegistry(t)
	l := fillLog(t, r, "welcome", "for", "against", "round two", "for", "against", "wrap up")
	g := NewGuarantor("remote work")

	outcome, err := g.Finalize(l, r)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForced, outcome)
	require.Equal(t, 8, l.Len())

	last, _ := l.Last()
	assert.Equal(t, "Host", last.Speaker)
	assert.Equal(t, 7, last.Seq)
	assert.True(t, last.Synthesized)
	assert.True(t, g.Qualifies(last, r))

	// idempotent
	again, err := g.Finalize(l, r)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForced, again)
	assert.Equal(t, 8, l.Len())
}

func TestGuarantor_NaturalConclusion(t *testing.T) {
	r := defaultRegistry(t)
	l := fillLog(t, r, "welcome", "for", "against", "OVERALL WINNER: John")
	g := NewGuarantor("remote work")

	outcome, err := g.Finalize(l, r)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNatural, outcome)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, OutcomeNatural, g.Outcome())
}

func TestGuarantor_DebaterCannotDeclareWinner(t *testing.T) {
	r := defaultRegistry(t)
	l := fillLog(t, r, "welcome", "winner: me, obviously")

	outcome, err := NewGuarantor("remote work").Finalize(l, r)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForced, outcome)
	assert.Equal(t, 3, l.Len())

	l2 := fillLog(t, r, "welcome", "winner: me, obviously")
	outcome, err = NewGuarantor("remote work", WithRequireModerator(false)).Finalize(l2, r)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNatural, outcome)
}

func TestGuarantor_DeterministicConclusionIsPure(t *testing.T) {
	r := defaultRegistry(t)
	a := fillLog(t, r, "x", "y", "z")
	b := fillLog(t, r, "x", "y", "z")

	_, err := NewGuarantor("remote work").Finalize(a, r)
	require.NoError(t, err)
	_, err = NewGuarantor("remote work").Finalize(b, r)
	require.NoError(t, err)

	la, _ := a.Last()
	lb, _ := b.Last()
	assert.Equal(t, la.Content, lb.Content)
	assert.Contains(t, la.Content, "overall winner: ")
}

func TestGuarantor_Strategies(t *testing.T) {
	r := defaultRegistry(t)
	in := ConclusionInput{Topic: "t", TurnCount: 7, Debaters: r.Debaters(), Marker: "overall winner"}

	assert.Equal(t, "After hearing both sides, the overall winner: Jack!", FixedWinnerStrategy{Winner: "Jack"}.Conclude(in))

	seeded := SeededRandomStrategy{Seed: 42}
	assert.Equal(t, seeded.Conclude(in), seeded.Conclude(in))

	in.Debaters = nil
	assert.Contains(t, DeterministicStrategy{}.Conclude(in), "undecided")
}

func TestGuarantor_CustomMarkers(t *testing.T) {
	r := defaultRegistry(t)
	l := fillLog(t, r, "a", "b")
	g := NewGuarantor("remote work", WithClosingMarkers("conclusion:"))

	_, err := g.Finalize(l, r)
	require.NoError(t, err)
	last, _ := l.Last()
	assert.Contains(t, last.Content, "the conclusion: ")
}

func TestGuarantor_PredicateMismatch(t *testing.T) {
	r := defaultRegistry(t)
	l := fillLog(t, r, "a")
	never := func(Turn) bool { return false }
	g := NewGuarantor("remote work", WithClosingPredicate(never, "winner"))

	_, err := g.Finalize(l, r)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))
	assert.Equal(t, 1, l.Len())
}

func TestGuarantor_NoModerator(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Participant{Name: "A", Role: RoleProponent}))
	l := fillLog(t, r, "a")

	_, err := NewGuarantor("x").Finalize(l, r)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidParticipant))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("", 0)
	require.NoError(t, err)
	assert.Equal(t, "deterministic", s.Name())

	s, err = ParseStrategy("seeded_random", 7)
	require.NoError(t, err)
	assert.Equal(t, SeededRandomStrategy{Seed: 7}, s)

	_, err = ParseStrategy("coin_flip", 0)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig))
}
