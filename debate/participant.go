package debate

import (
	"strings"
	"sync"

	"github.com/BaSui01/debateflow/types"
)

// Role is the fixed part a participant plays in a debate.
type Role string

const (
	RoleModerator Role = "moderator" // Opens, moderates and closes the debate
	RoleProponent Role = "proponent" // Argues for the topic
	RoleOpponent  Role = "opponent"  // Argues against the topic
	RoleFreeForm  Role = "free_form" // Any other voice
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleModerator, RoleProponent, RoleOpponent, RoleFreeForm:
		return true
	}
	return false
}

// Label is the human readable role suffix used in transcripts and consoles.
func (r Role) Label() string {
	switch r {
	case RoleModerator:
		return "Moderator"
	case RoleProponent:
		return "Supporter"
	case RoleOpponent:
		return "Critic"
	default:
		return ""
	}
}

// ParseRole converts a configuration string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "free-form" || r == "freeform" {
		r = RoleFreeForm
	}
	if !r.Valid() {
		return "", types.Errorf(types.ErrInvalidParticipant, "unknown role %q", s)
	}
	return r, nil
}

// Participant is a speaking identity. Persona is passed verbatim to the generator.
type Participant struct {
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Persona string `json:"persona,omitempty"`
}

// Registry holds the ordered speaking identities of one session.
// Insertion order is the speaking order; there is no removal.
type Registry struct {
	mu     sync.RWMutex
	order  []Participant
	index  map[string]int
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends p to the speaking order.
func (r *Registry) Register(p Participant) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return types.NewError(types.ErrInvalidParticipant, "participant name is required")
	}
	if !p.Role.Valid() {
		return types.Errorf(types.ErrInvalidParticipant, "participant %q has unknown role %q", p.Name, p.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return types.Errorf(types.ErrInvalidParticipant, "registry sealed, cannot register %q", p.Name)
	}
	if _, exists := r.index[p.Name]; exists {
		return types.Errorf(types.ErrDuplicateIdentity, "participant %q already registered", p.Name)
	}
	r.index[p.Name] = len(r.order)
	r.order = append(r.order, p)
	return nil
}

// Ordered returns a copy of the speaking order.
func (r *Registry) Ordered() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Participant(nil), r.order...)
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Lookup resolves a participant by name.
func (r *Registry) Lookup(name string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return Participant{}, false
	}
	return r.order[i], true
}

// Moderator returns the first participant with the moderator role.
func (r *Registry) Moderator() (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.order {
		if p.Role == RoleModerator {
			return p, true
		}
	}
	return Participant{}, false
}

// Debaters returns proponents and opponents in speaking order, falling back
// to every non-moderator when no debater roles are registered.
func (r *Registry) Debaters() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out, others []Participant
	for _, p := range r.order {
		switch p.Role {
		case RoleProponent, RoleOpponent:
			out = append(out, p)
		case RoleFreeForm:
			others = append(others, p)
		}
	}
	if len(out) == 0 {
		return others
	}
	return out
}

func (r *Registry) at(i int) Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order[i%len(r.order)]
}

func (r *Registry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
