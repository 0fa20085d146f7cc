package debate

import (
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/debateflow/types"
)

// ContentPolicy decides what happens to empty generator output.
type ContentPolicy string

const (
	// RejectEmpty refuses whitespace-only content with EMPTY_CONTENT.
	RejectEmpty ContentPolicy = "reject_empty"
	// AcceptEmpty records whatever the generator returned.
	AcceptEmpty ContentPolicy = "accept_empty"
)

// Valid reports whether p is a known policy.
func (p ContentPolicy) Valid() bool {
	return p == RejectEmpty || p == AcceptEmpty
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithOneBasedRounds makes RoundNumber start at 1.
func WithOneBasedRounds() SchedulerOption {
	return func(s *Scheduler) { s.oneBased = true }
}

// WithContentPolicy overrides the default RejectEmpty policy.
func WithContentPolicy(p ContentPolicy) SchedulerOption {
	return func(s *Scheduler) {
		if p.Valid() {
			s.policy = p
		}
	}
}

// WithSchedulerClock sets the timestamp source for recorded turns.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler advances a round-robin pointer over a Registry and records turns
// into a Log until the turn budget is spent.
type Scheduler struct {
	mu       sync.RWMutex
	registry *Registry
	log      *Log
	budget   int
	seq      int
	oneBased bool
	policy   ContentPolicy
	now      func() time.Time
}

// NewScheduler creates a scheduler. The budget is a hard upper bound on turns.
func NewScheduler(registry *Registry, log *Log, budget int, opts ...SchedulerOption) (*Scheduler, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "scheduler needs at least one participant")
	}
	if log == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "scheduler needs a message log")
	}
	if budget <= 0 {
		return nil, types.Errorf(types.ErrInvalidConfig, "turn budget must be positive, got %d", budget)
	}

	s := &Scheduler{
		registry: registry,
		log:      log,
		budget:   budget,
		seq:      log.Len(),
		policy:   RejectEmpty,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NextSpeaker returns the participant at seq mod P.
func (s *Scheduler) NextSpeaker() Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.at(s.seq)
}

// RoundNumber returns seq div P, shifted by one when one-based.
func (s *Scheduler) RoundNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round := s.seq / s.registry.Len()
	if s.oneBased {
		round++
	}
	return round
}

// TotalRounds is the number of rounds the budget spans, counting a trailing
// partial round.
func (s *Scheduler) TotalRounds() int {
	p := s.registry.Len()
	return (s.budget + p - 1) / p
}

// RecordTurn attributes content to NextSpeaker, appends it to the log and
// advances the sequence counter. Nothing is recorded on error.
func (s *Scheduler) RecordTurn(content string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq >= s.budget {
		return Turn{}, types.Errorf(types.ErrBudgetExhausted, "turn budget of %d exhausted", s.budget)
	}
	if s.policy == RejectEmpty && strings.TrimSpace(content) == "" {
		return Turn{}, types.Errorf(types.ErrEmptyContent, "empty content for turn %d", s.seq)
	}

	turn := Turn{
		Seq:       s.seq,
		Speaker:   s.registry.at(s.seq).Name,
		Content:   content,
		Timestamp: s.now(),
	}
	if err := s.log.Append(turn); err != nil {
		return Turn{}, err
	}
	s.seq++
	return turn, nil
}

// IsComplete reports whether the budget has been reached.
func (s *Scheduler) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq >= s.budget
}

// Seq returns the index of the next turn to be recorded.
func (s *Scheduler) Seq() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Budget returns the configured turn budget.
func (s *Scheduler) Budget() int { return s.budget }

// Remaining returns how many turns may still be recorded.
func (s *Scheduler) Remaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.seq >= s.budget {
		return 0
	}
	return s.budget - s.seq
}
