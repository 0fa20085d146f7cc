package debate

import (
	"sync"
	"time"

	"github.com/BaSui01/debateflow/types"
)

// Turn is one committed utterance. Turns are values and are never mutated.
type Turn struct {
	Seq       int       `json:"seq"`
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Synthesized marks the closing turn appended by the Guarantor.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Log is the append-only ordered turn sequence of a session.
type Log struct {
	mu      sync.RWMutex
	turns   []Turn
	members *Registry
}

// NewLog creates an empty log. When members is non-nil every appended turn's
// speaker must resolve to a registered participant.
func NewLog(members *Registry) *Log {
	return &Log{members: members}
}

// Append commits t. Sequence indices must be contiguous from 0.
func (l *Log) Append(t Turn) error {
	if l.members != nil {
		if _, ok := l.members.Lookup(t.Speaker); !ok {
			return types.Errorf(types.ErrInvalidParticipant, "speaker %q is not a registered participant", t.Speaker)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if t.Seq != len(l.turns) {
		return types.Errorf(types.ErrOutOfOrderTurn, "turn seq %d, expected %d", t.Seq, len(l.turns))
	}
	l.turns = append(l.turns, t)
	return nil
}

// All returns a snapshot of every turn in order.
func (l *Log) All() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Turn(nil), l.turns...)
}

// Tail returns a snapshot of the last n turns, or fewer if the log is shorter.
func (l *Log) Tail(n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := len(l.turns) - n
	if start < 0 {
		start = 0
	}
	return append([]Turn{}, l.turns[start:]...)
}

// Len returns the number of committed turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Last returns the most recent turn.
func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}
