package debate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/internal/ctxkeys"
	"github.com/BaSui01/debateflow/types"
)

// Status is the user-visible lifecycle state of a session.
type Status string

const (
	StatusRunning          Status = "running"
	StatusPaused           Status = "paused"
	StatusCompleted        Status = "completed"
	StatusConcludedNatural Status = "concluded_natural"
	StatusConcludedForced  Status = "concluded_forced"
)

// Concluded reports whether the session has been finalized.
func (s Status) Concluded() bool {
	return s == StatusConcludedNatural || s == StatusConcludedForced
}

// Config holds the per-session knobs.
type Config struct {
	TurnBudget     int
	ContextWindow  int
	OneBasedRounds bool
	AnnounceRounds bool
	ContentPolicy  ContentPolicy
	ClosingMarkers []string
	Strategy       ConclusionStrategy
}

// DefaultConfig returns a ten-turn debate with the built-in closing markers.
func DefaultConfig() Config {
	return Config{
		TurnBudget:     10,
		ContextWindow:  6,
		ContentPolicy:  RejectEmpty,
		ClosingMarkers: append([]string(nil), DefaultClosingMarkers...),
		Strategy:       DeterministicStrategy{},
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the default session config.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.config = cfg }
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTurnObserver registers fn to be called after every committed turn,
// including a synthesized closing turn.
func WithTurnObserver(fn func(Turn)) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithClock sets the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithClosingPredicateOption installs a custom closing predicate.
func WithClosingPredicateOption(pred ClosingPredicate, marker string) Option {
	return func(s *Session) {
		s.extraGuarantor = append(s.extraGuarantor, WithClosingPredicate(pred, marker))
	}
}

// Session is one debate: a sealed registry, its log, scheduler and guarantor.
// Only one Step, Run or Finalize may execute at a time.
type Session struct {
	ID        string
	Topic     string
	CreatedAt time.Time

	config    Config
	registry  *Registry
	log       *Log
	scheduler *Scheduler
	guarantor *Guarantor

	writer sync.Mutex

	mu       sync.RWMutex
	status   Status
	lastErr  error
	comments []Comment

	observers      []func(Turn)
	extraGuarantor []GuarantorOption
	now            func() time.Time
	logger         *zap.Logger
}

// NewSession validates the debate setup and seals its registry.
func NewSession(topic string, participants []Participant, opts ...Option) (*Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, types.NewError(types.ErrInvalidConfig, "debate topic is required")
	}
	if len(participants) < 2 {
		return nil, types.Errorf(types.ErrInvalidConfig, "a debate needs at least 2 participants, got %d", len(participants))
	}

	s := &Session{
		ID:     uuid.NewString(),
		Topic:  topic,
		config: DefaultConfig(),
		status: StatusRunning,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.CreatedAt = s.now()
	s.logger = s.logger.With(zap.String("component", "debate_session"), zap.String("session_id", s.ID))

	if s.config.ContextWindow < 0 {
		return nil, types.Errorf(types.ErrInvalidConfig, "context window must not be negative, got %d", s.config.ContextWindow)
	}
	if s.config.ContentPolicy == "" {
		s.config.ContentPolicy = RejectEmpty
	}
	if !s.config.ContentPolicy.Valid() {
		return nil, types.Errorf(types.ErrInvalidConfig, "unknown content policy %q", s.config.ContentPolicy)
	}

	s.registry = NewRegistry()
	for _, p := range participants {
		if err := s.registry.Register(p); err != nil {
			return nil, err
		}
	}
	if _, ok := s.registry.Moderator(); !ok {
		return nil, types.NewError(types.ErrInvalidConfig, "a debate needs a moderator to close it")
	}
	s.registry.seal()

	s.log = NewLog(s.registry)

	schedOpts := []SchedulerOption{
		WithContentPolicy(s.config.ContentPolicy),
		WithSchedulerClock(s.now),
	}
	if s.config.OneBasedRounds {
		schedOpts = append(schedOpts, WithOneBasedRounds())
	}
	sched, err := NewScheduler(s.registry, s.log, s.config.TurnBudget, schedOpts...)
	if err != nil {
		return nil, err
	}
	s.scheduler = sched

	gOpts := []GuarantorOption{
		WithStrategy(s.config.Strategy),
		WithGuarantorClock(s.now),
	}
	if len(s.config.ClosingMarkers) > 0 {
		gOpts = append(gOpts, WithClosingMarkers(s.config.ClosingMarkers...))
	}
	gOpts = append(gOpts, s.extraGuarantor...)
	s.guarantor = NewGuarantor(topic, gOpts...)

	s.logger.Info("debate session created",
		zap.String("topic", topic),
		zap.Int("participants", s.registry.Len()),
		zap.Int("turn_budget", s.config.TurnBudget))
	return s, nil
}

// =============================================================================
// Turn advancement
// =============================================================================

// Step produces and records exactly one turn. A generator failure leaves the
// log untouched, pauses the session and returns UPSTREAM_UNAVAILABLE. When ctx
// is cancelled during generation the ctx error is returned instead.
func (s *Session) Step(ctx context.Context, gen Generator) (Turn, error) {
	if !s.writer.TryLock() {
		return Turn{}, types.NewError(types.ErrSessionBusy, "another operation is advancing this session")
	}
	defer s.writer.Unlock()
	return s.stepLocked(ctx, gen)
}

// Run steps until the budget is reached. It does not finalize.
func (s *Session) Run(ctx context.Context, gen Generator) error {
	if !s.writer.TryLock() {
		return types.NewError(types.ErrSessionBusy, "another operation is advancing this session")
	}
	defer s.writer.Unlock()

	for !s.scheduler.IsComplete() {
		if err := ctx.Err(); err != nil {
			s.setStatus(StatusPaused, err)
			return fmt.Errorf("debate run interrupted at turn %d: %w", s.scheduler.Seq(), err)
		}
		if _, err := s.stepLocked(ctx, gen); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) stepLocked(ctx context.Context, gen Generator) (Turn, error) {
	if s.scheduler.IsComplete() {
		return Turn{}, types.Errorf(types.ErrBudgetExhausted, "turn budget of %d exhausted", s.scheduler.Budget())
	}

	speaker := s.scheduler.NextSpeaker()
	seq := s.scheduler.Seq()
	window := s.log.Tail(s.config.ContextWindow)

	genCtx := ctxkeys.WithSessionID(ctx, s.ID)
	genCtx = ctxkeys.WithSpeaker(genCtx, speaker.Name)
	genCtx = ctxkeys.WithRound(genCtx, seq/s.registry.Len()+1)

	content, err := gen.Generate(genCtx, s.prompt(speaker), window)
	if err != nil && ctx.Err() != nil {
		// Abandoned by the caller; the turn was not recorded.
		s.logger.Info("debate interrupted",
			zap.Int("seq", seq),
			zap.String("speaker", speaker.Name),
			zap.Error(ctx.Err()))
		s.setStatus(StatusPaused, ctx.Err())
		return Turn{}, fmt.Errorf("debate interrupted at turn %d: %w", seq, ctx.Err())
	}
	if err != nil {
		if !types.IsErrorCode(err, types.ErrUpstreamUnavailable) {
			err = types.Errorf(types.ErrUpstreamUnavailable, "generating turn %d for %s", seq, speaker.Name).
				WithCause(err).
				WithRetryable(true)
		}
		s.logger.Warn("debate paused, upstream failed",
			zap.Int("seq", seq),
			zap.String("speaker", speaker.Name),
			zap.Error(err))
		s.setStatus(StatusPaused, err)
		return Turn{}, err
	}

	turn, err := s.scheduler.RecordTurn(content)
	if err != nil {
		s.logger.Warn("turn rejected", zap.Int("seq", seq), zap.String("speaker", speaker.Name), zap.Error(err))
		s.setStatus(StatusPaused, err)
		return Turn{}, err
	}

	if s.scheduler.IsComplete() {
		s.setStatus(StatusCompleted, nil)
	} else {
		s.setStatus(StatusRunning, nil)
	}
	s.logger.Debug("turn recorded",
		zap.Int("seq", turn.Seq),
		zap.String("speaker", turn.Speaker),
		zap.Int("round", s.scheduler.RoundNumber()))
	s.notify(turn)
	return turn, nil
}

func (s *Session) prompt(speaker Participant) string {
	if !s.config.AnnounceRounds {
		return speaker.Persona
	}
	round := s.scheduler.Seq()/s.registry.Len() + 1
	return fmt.Sprintf("This is round %d of %d.\n\n%s", round, s.scheduler.TotalRounds(), speaker.Persona)
}

// =============================================================================
// Termination
// =============================================================================

// Finalize guarantees a closing turn with the configured strategy.
func (s *Session) Finalize() (Outcome, error) {
	return s.FinalizeWith(nil)
}

// FinalizeWith guarantees a closing turn, synthesizing it with strategy when
// non-nil. It fails with SESSION_NOT_COMPLETE before the budget is reached.
func (s *Session) FinalizeWith(strategy ConclusionStrategy) (Outcome, error) {
	if !s.writer.TryLock() {
		return "", types.NewError(types.ErrSessionBusy, "another operation is advancing this session")
	}
	defer s.writer.Unlock()

	if !s.scheduler.IsComplete() {
		return "", types.Errorf(types.ErrSessionNotComplete,
			"%d of %d turns recorded", s.scheduler.Seq(), s.scheduler.Budget())
	}

	before := s.log.Len()
	outcome, err := s.guarantor.FinalizeWith(s.log, s.registry, strategy)
	if err != nil {
		return "", err
	}

	if outcome == OutcomeNatural {
		s.setStatus(StatusConcludedNatural, nil)
	} else {
		s.setStatus(StatusConcludedForced, nil)
	}
	if s.log.Len() > before {
		if last, ok := s.log.Last(); ok {
			s.notify(last)
		}
	}
	s.logger.Info("debate concluded", zap.String("outcome", string(outcome)), zap.Int("turns", s.log.Len()))
	return outcome, nil
}

// =============================================================================
// Read side
// =============================================================================

// NextSpeaker returns the participant for the current sequence index.
func (s *Session) NextSpeaker() Participant { return s.scheduler.NextSpeaker() }

// RoundNumber returns the scheduler round.
func (s *Session) RoundNumber() int { return s.scheduler.RoundNumber() }

// IsComplete reports whether the turn budget is spent.
func (s *Session) IsComplete() bool { return s.scheduler.IsComplete() }

// Turns returns a snapshot of the log.
func (s *Session) Turns() []Turn { return s.log.All() }

// Participants returns the speaking order.
func (s *Session) Participants() []Participant { return s.registry.Ordered() }

// Config returns the session config.
func (s *Session) Config() Config { return s.config }

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the error that paused the session, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Transcript renders the plain transcript of the current log.
func (s *Session) Transcript() string { return PlainTranscript(s.log.All()) }

// State is a read-only snapshot for presentation layers.
type State struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Participants []Participant `json:"participants"`
	Turns        []Turn        `json:"turns"`
	Round        int           `json:"round"`
	TotalRounds  int           `json:"total_rounds"`
	TurnBudget   int           `json:"turn_budget"`
	Complete     bool          `json:"complete"`
	Status       Status        `json:"status"`
	Outcome      Outcome       `json:"outcome,omitempty"`
	NextSpeaker  string        `json:"next_speaker,omitempty"`
	Error        string        `json:"error,omitempty"`
	Comments     []Comment     `json:"comments,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	st := State{
		ID:           s.ID,
		Topic:        s.Topic,
		Participants: s.registry.Ordered(),
		Turns:        s.log.All(),
		Round:        s.scheduler.RoundNumber(),
		TotalRounds:  s.scheduler.TotalRounds(),
		TurnBudget:   s.scheduler.Budget(),
		Complete:     s.scheduler.IsComplete(),
		Status:       s.Status(),
		Outcome:      s.guarantor.Outcome(),
		Comments:     s.Comments(),
		CreatedAt:    s.CreatedAt,
	}
	if !st.Complete {
		st.NextSpeaker = s.scheduler.NextSpeaker().Name
	}
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *Session) setStatus(status Status, err error) {
	s.mu.Lock()
	s.status = status
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Session) notify(t Turn) {
	for _, fn := range s.observers {
		fn(t)
	}
}
