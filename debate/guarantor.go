package debate

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/debateflow/types"
)

// DefaultClosingMarkers are the phrases that mark a closing announcement.
var DefaultClosingMarkers = []string{"overall winner", "winner:"}

// ClosingPredicate reports whether a turn is a valid conclusion.
type ClosingPredicate func(Turn) bool

// MarkerPredicate matches turns whose content contains any marker,
// ignoring case. Blank markers are ignored.
func MarkerPredicate(markers ...string) ClosingPredicate {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	return func(t Turn) bool {
		content := strings.ToLower(t.Content)
		for _, m := range lowered {
			if strings.Contains(content, m) {
				return true
			}
		}
		return false
	}
}

// Outcome describes how a session was concluded.
type Outcome string

const (
	OutcomeNatural Outcome = "natural" // The last turn already qualified
	OutcomeForced  Outcome = "forced"  // A closing turn was synthesized
)

// ConclusionInput is the session state a ConclusionStrategy may depend on.
type ConclusionInput struct {
	Topic     string
	TurnCount int
	Debaters  []Participant
	Closer    Participant
	Marker    string
}

// ConclusionStrategy produces fallback closing text. Implementations must be
// pure functions of their input and configuration.
type ConclusionStrategy interface {
	Name() string
	Conclude(in ConclusionInput) string
}

// DeterministicStrategy picks the winner by hashing topic and turn count.
type DeterministicStrategy struct{}

func (DeterministicStrategy) Name() string { return "deterministic" }

func (DeterministicStrategy) Conclude(in ConclusionInput) string {
	winner := ""
	if len(in.Debaters) > 0 {
		winner = in.Debaters[stateHash(in.Topic, in.TurnCount)%uint64(len(in.Debaters))].Name
	}
	return fmt.Sprintf("Time is up after %d turns. %s", in.TurnCount, announce(in.Marker, winner))
}

// FixedWinnerStrategy always names Winner.
type FixedWinnerStrategy struct {
	Winner string
}

func (FixedWinnerStrategy) Name() string { return "fixed_winner" }

func (s FixedWinnerStrategy) Conclude(in ConclusionInput) string {
	return announce(in.Marker, s.Winner)
}

// SeededRandomStrategy draws the winner from a generator seeded with Seed and
// the session state, so equal seeds give equal conclusions.
type SeededRandomStrategy struct {
	Seed int64
}

func (SeededRandomStrategy) Name() string { return "seeded_random" }

func (s SeededRandomStrategy) Conclude(in ConclusionInput) string {
	winner := ""
	if len(in.Debaters) > 0 {
		r := rand.New(rand.NewPCG(uint64(s.Seed), stateHash(in.Topic, in.TurnCount)))
		winner = in.Debaters[r.IntN(len(in.Debaters))].Name
	}
	return announce(in.Marker, winner)
}

// ParseStrategy resolves a configured strategy name.
func ParseStrategy(name string, seed int64) (ConclusionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "deterministic":
		return DeterministicStrategy{}, nil
	case "seeded_random", "random":
		return SeededRandomStrategy{Seed: seed}, nil
	default:
		return nil, types.Errorf(types.ErrInvalidConfig, "unknown conclusion strategy %q", name)
	}
}

func stateHash(topic string, turnCount int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(topic))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(turnCount)))
	return h.Sum64()
}

// announce embeds marker verbatim so any case-insensitive match on it holds.
func announce(marker, winner string) string {
	marker = strings.TrimSpace(marker)
	if winner == "" {
		winner = "undecided"
	}
	if strings.HasSuffix(marker, ":") {
		return fmt.Sprintf("After hearing both sides, the %s %s!", marker, winner)
	}
	return fmt.Sprintf("After hearing both sides, the %s: %s!", marker, winner)
}

// GuarantorOption configures a Guarantor.
type GuarantorOption func(*Guarantor)

// WithClosingMarkers replaces the marker list. The first marker is embedded
// in synthesized conclusions.
func WithClosingMarkers(markers ...string) GuarantorOption {
	return func(g *Guarantor) {
		for _, m := range markers {
			if strings.TrimSpace(m) != "" {
				g.marker = m
				g.predicate = MarkerPredicate(markers...)
				return
			}
		}
	}
}

// WithClosingPredicate installs a custom predicate. marker is the text handed
// to the strategy and must make the predicate hold.
func WithClosingPredicate(pred ClosingPredicate, marker string) GuarantorOption {
	return func(g *Guarantor) {
		if pred != nil {
			g.predicate = pred
			g.marker = marker
		}
	}
}

// WithStrategy sets the default conclusion strategy.
func WithStrategy(s ConclusionStrategy) GuarantorOption {
	return func(g *Guarantor) {
		if s != nil {
			g.strategy = s
		}
	}
}

// WithRequireModerator controls whether only moderator turns can conclude.
func WithRequireModerator(require bool) GuarantorOption {
	return func(g *Guarantor) { g.requireModerator = require }
}

// WithGuarantorClock sets the timestamp source for synthesized turns.
func WithGuarantorClock(now func() time.Time) GuarantorOption {
	return func(g *Guarantor) {
		if now != nil {
			g.now = now
		}
	}
}

// Guarantor makes sure a completed log ends with a qualifying closing turn.
type Guarantor struct {
	topic            string
	predicate        ClosingPredicate
	marker           string
	strategy         ConclusionStrategy
	requireModerator bool
	now              func() time.Time

	mu      sync.Mutex
	outcome Outcome
}

// NewGuarantor creates a guarantor for topic with default markers and the
// deterministic strategy.
func NewGuarantor(topic string, opts ...GuarantorOption) *Guarantor {
	g := &Guarantor{
		topic:            topic,
		predicate:        MarkerPredicate(DefaultClosingMarkers...),
		marker:           DefaultClosingMarkers[0],
		strategy:         DeterministicStrategy{},
		requireModerator: true,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Qualifies reports whether t counts as a conclusion.
func (g *Guarantor) Qualifies(t Turn, registry *Registry) bool {
	if g.requireModerator && registry != nil {
		p, ok := registry.Lookup(t.Speaker)
		if !ok || p.Role != RoleModerator {
			return false
		}
	}
	return g.predicate(t)
}

// Outcome returns the recorded outcome, empty before Finalize succeeded.
func (g *Guarantor) Outcome() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outcome
}

// Finalize concludes log with the default strategy.
func (g *Guarantor) Finalize(log *Log, registry *Registry) (Outcome, error) {
	return g.FinalizeWith(log, registry, nil)
}

// FinalizeWith concludes log, using strategy for a synthesized turn when
// non-nil. Once an outcome is recorded later calls return it unchanged.
func (g *Guarantor) FinalizeWith(log *Log, registry *Registry, strategy ConclusionStrategy) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.outcome != "" {
		return g.outcome, nil
	}
	if last, ok := log.Last(); ok && g.Qualifies(last, registry) {
		g.outcome = OutcomeNatural
		return g.outcome, nil
	}

	closer, ok := registry.Moderator()
	if !ok {
		return "", types.NewError(types.ErrInvalidParticipant, "no moderator registered to close the debate")
	}
	if strategy == nil {
		strategy = g.strategy
	}

	turn := Turn{
		Seq:     log.Len(),
		Speaker: closer.Name,
		Content: strategy.Conclude(ConclusionInput{
			Topic:     g.topic,
			TurnCount: log.Len(),
			Debaters:  registry.Debaters(),
			Closer:    closer,
			Marker:    g.marker,
		}),
		Timestamp:   g.now(),
		Synthesized: true,
	}
	if !g.predicate(turn) {
		return "", types.Errorf(types.ErrInvalidConfig,
			"conclusion from %s strategy does not satisfy the closing predicate", strategy.Name())
	}
	if err := log.Append(turn); err != nil {
		return "", err
	}
	g.outcome = OutcomeForced
	return g.outcome, nil
}
