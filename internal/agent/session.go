package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/history"
	"github.com/haasonsaas/agentcore/internal/tools/system"
)

// State is a session's position in the loop state machine.
type State string

const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateAwaitingTool State = "awaiting_tool"
	StateSuspended    State = "suspended"
	StateFinished     State = "finished"
	StateError        State = "error"
)

// Active reports whether a run is in progress.
func (s State) Active() bool {
	return s == StateRunning || s == StateAwaitingTool
}

// CompletionExtension is the context store key holding the Completion
// recorded when a tool finishes the task.
const CompletionExtension = "agent.completion"

// Completion records a finished task.
type Completion struct {
	Summary string    `json:"summary"`
	Tool    string    `json:"tool"`
	At      time.Time `json:"at"`
}

// Session is one conversation: its history, its context store and its
// loop state. Sessions share nothing with each other.
type Session struct {
	ID           string
	SystemPrompt string
	Store        *extensions.Store
	History      *history.Manager
	CreatedAt    time.Time

	mu          sync.Mutex
	state       State
	initialized bool
}

// NewSession creates an idle session. An empty id gets a generated one.
// The history is published in the store as the session's usage source.
func NewSession(id string, hist *history.Manager, systemPrompt string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:           id,
		SystemPrompt: systemPrompt,
		Store:        extensions.NewStore(),
		History:      hist,
		CreatedAt:    time.Now(),
		state:        StateIdle,
	}
	if hist != nil {
		s.Store.Put(system.UsageExtension, hist)
	}
	return s
}

// State returns the current loop state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState moves to next and returns the previous state.
func (s *Session) setState(next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = next
	return prev
}

// begin claims the session for a run.
func (s *Session) begin() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Active() {
		return s.state, false
	}
	prev := s.state
	s.state = StateRunning
	return prev, true
}

// markInitialized reports whether this call performed the first
// initialization.
func (s *Session) markInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return false
	}
	s.initialized = true
	return true
}

// Completion returns the task completion recorded in the store, if any.
func (s *Session) Completion() (Completion, bool) {
	c, ok, err := extensions.GetAs[Completion](s.Store, CompletionExtension)
	if err != nil {
		return Completion{}, false
	}
	return c, ok
}
