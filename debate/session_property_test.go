package debate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genParticipants(rt *rapid.T) []Participant {
	p := rapid.IntRange(2, 6).Draw(rt, "participants")
	out := make([]Participant, p)
	out[0] = Participant{Name: "Mod", Role: RoleModerator}
	for i := 1; i < p; i++ {
		role := RoleProponent
		if i%2 == 0 {
			role = RoleOpponent
		}
		out[i] = Participant{Name: fmt.Sprintf("P%d", i), Role: role}
	}
	return out
}

// TestProperty_Session_TurnBoundsAndFairness: 任意 B 与 P>=2，Run 之后恰好 B 条，
// Finalize 之后至多 B+1 条；每个参与者发言 floor(B/P) 或 ceil(B/P) 次。
func TestProperty_Session_TurnBoundsAndFairness(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		participants := genParticipants(rt)
		budget := rapid.IntRange(1, 40).Draw(rt, "budget")
		closeNaturally := rapid.Bool().Draw(rt, "closeNaturally")

		cfg := DefaultConfig()
		cfg.TurnBudget = budget
		s, err := NewSession("property topic", participants, WithConfig(cfg))
		require.NoError(rt, err)

		gen := GeneratorFunc(func(_ context.Context, _ string, window []Turn) (string, error) {
			if closeNaturally {
				return "winner: Mod decides", nil
			}
			return fmt.Sprintf("turn after %d", len(window)), nil
		})
		require.NoError(rt, s.Run(context.Background(), gen))

		turns := s.Turns()
		require.Len(rt, turns, budget)

		p := len(participants)
		counts := make(map[string]int)
		for i, turn := range turns {
			require.Equal(rt, i, turn.Seq, "seq must be contiguous from 0")
			require.Equal(rt, participants[i%p].Name, turn.Speaker, "round robin order")
			counts[turn.Speaker]++
		}
		for _, part := range participants {
			c := counts[part.Name]
			require.True(rt, c == budget/p || c == (budget+p-1)/p,
				"%s spoke %d times with B=%d P=%d", part.Name, c, budget, p)
		}

		outcome, err := s.Finalize()
		require.NoError(rt, err)
		after := s.Turns()
		require.LessOrEqual(rt, len(after), budget+1)

		last := after[len(after)-1]
		require.True(rt, s.guarantor.Qualifies(last, s.registry), "last turn must close the debate")
		if outcome == OutcomeForced {
			require.Len(rt, after, budget+1)
			require.True(rt, last.Synthesized)
		}

		_, err = s.Finalize()
		require.NoError(rt, err)
		require.Len(rt, s.Turns(), len(after), "finalize must be idempotent")
	})
}

// TestProperty_Session_FailureKeepsLogIntact: 在任意位置注入上游失败，日志只包含
// 失败之前的回合，恢复后 NextSpeaker 与失败位置一致。
func TestProperty_Session_FailureKeepsLogIntact(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		participants := genParticipants(rt)
		budget := rapid.IntRange(1, 30).Draw(rt, "budget")
		failAt := rapid.IntRange(0, budget-1).Draw(rt, "failAt")

		cfg := DefaultConfig()
		cfg.TurnBudget = budget
		s, err := NewSession("property topic", participants, WithConfig(cfg))
		require.NoError(rt, err)

		gen := &scriptedGenerator{failAt: map[int]error{failAt: fmt.Errorf("upstream down")}}
		require.Error(rt, s.Run(context.Background(), gen))

		require.Len(rt, s.Turns(), failAt)
		require.False(rt, s.IsComplete())
		require.Equal(rt, participants[failAt%len(participants)].Name, s.NextSpeaker().Name)

		require.NoError(rt, s.Run(context.Background(), gen))
		require.Len(rt, s.Turns(), budget)
	})
}

// TestProperty_Session_AnyMarkerCanClose: 任意非空收尾标记（大小写、非 ASCII、
// 纯标点）下 Finalize 都成功，且最后一条满足标记判定。
func TestProperty_Session_AnyMarkerCanClose(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		markers := rapid.SliceOfN(rapid.StringN(1, 12, -1), 1, 4).
			Filter(func(ms []string) bool {
				for _, m := range ms {
					if strings.TrimSpace(m) != "" {
						return true
					}
				}
				return false
			}).Draw(rt, "markers")
		strategy := rapid.SampledFrom([]ConclusionStrategy{
			DeterministicStrategy{},
			SeededRandomStrategy{Seed: 7},
			FixedWinnerStrategy{Winner: "P1"},
		}).Draw(rt, "strategy")

		cfg := DefaultConfig()
		cfg.TurnBudget = rapid.IntRange(1, 9).Draw(rt, "budget")
		cfg.ClosingMarkers = markers
		cfg.Strategy = strategy
		s, err := NewSession("property topic", genParticipants(rt), WithConfig(cfg))
		require.NoError(rt, err)
		require.NoError(rt, s.Run(context.Background(), &scriptedGenerator{}))

		_, err = s.Finalize()
		require.NoError(rt, err)

		turns := s.Turns()
		require.True(rt, MarkerPredicate(markers...)(turns[len(turns)-1]),
			"last turn %q must match one of %q", turns[len(turns)-1].Content, markers)
	})
}
