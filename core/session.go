package core

import (
	"sync"
	"time"
)

// State names the orchestrator's position in the per-request state machine.
type State string

const (
	// StateComposing is the initial state: user text plus profile context
	// are appended as the next turn.
	StateComposing State = "composing"
	// StateAwaitingCompletion means a backend run is active and being polled.
	StateAwaitingCompletion State = "awaiting_completion"
	// StateDispatchingTools means the run requires action and tool calls are
	// being executed.
	StateDispatchingTools State = "dispatching_tools"
	// StateDelivering is the terminal success state.
	StateDelivering State = "delivering"
	// StateFailed is the terminal failure state.
	StateFailed State = "failed"
)

// Session represents one continuous conversation with the assistant backend.
// It tracks the backend thread token, the ordered turn history and the
// current state machine position. Safe for concurrent access.
//
// Contract:
//   - Turn appends update the Updated timestamp
//   - Turns returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of slices for safe divergence
type Session struct {
	ID             string    `json:"id"`
	ThreadID       string    `json:"thread_id,omitempty"`
	ProfileContext string    `json:"profile_context,omitempty"`
	Turns          []Turn    `json:"turns"`
	State          State     `json:"state"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
	mu             sync.RWMutex
}

// NewSession creates a new session in the Composing state.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Turns: []Turn{}, State: StateComposing, Created: now, Updated: now}
}

// SetThreadID records the backend-issued thread token.
func (s *Session) SetThreadID(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ThreadID = threadID
	s.Updated = time.Now()
}

// GetThreadID returns the backend thread token, empty if none was issued yet.
func (s *Session) GetThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ThreadID
}

// SetState moves the session to the given state.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.Updated = time.Now()
}

// GetState returns the current state machine position.
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// AppendTurn appends a turn to the history updating the Updated timestamp.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, t)
	s.Updated = time.Now()
}

// GetTurns returns a defensive copy of the full turn history.
func (s *Session) GetTurns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	return turns
}

// LastAssistantText returns the text of the most recent assistant turn,
// empty if the assistant has not replied yet.
func (s *Session) LastAssistantText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleAssistant && s.Turns[i].Text != "" {
			return s.Turns[i].Text
		}
	}
	return ""
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:             s.ID,
		ThreadID:       s.ThreadID,
		ProfileContext: s.ProfileContext,
		Turns:          make([]Turn, len(s.Turns)),
		State:          s.State,
		Created:        s.Created,
		Updated:        s.Updated,
	}
	copy(clone.Turns, s.Turns)
	return clone
}

// SetProfileContext records the rendered profile context for the session.
func (s *Session) SetProfileContext(context string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfileContext = context
	s.Updated = time.Now()
}

// SessionStore persists sessions and their evolving turn history.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendTurn(sessionID string, t Turn) error
	SetThreadID(sessionID, threadID string) error
	SetProfileContext(sessionID, context string) error
}
