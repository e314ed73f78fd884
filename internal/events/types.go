// Package events provides the typed publish/subscribe bus that lets
// observers react to agent lifecycle moments without coupling to the loop.
package events

import (
	"context"
	"time"
)

// Kind identifies a lifecycle moment. The set is closed.
type Kind string

const (
	KindBeforeInit          Kind = "before_init"
	KindAfterInit           Kind = "after_init"
	KindBeforeLLMRequest    Kind = "before_llm_request"
	KindAfterLLMRequest     Kind = "after_llm_request"
	KindBeforeToolCall      Kind = "before_tool_call"
	KindAfterToolCall       Kind = "after_tool_call"
	KindFileCreated         Kind = "file_created"
	KindFileUpdated         Kind = "file_updated"
	KindFileDeleted         Kind = "file_deleted"
	KindAgentSuspended      Kind = "agent_suspended"
	KindError               Kind = "error"
	KindMessageAppended     Kind = "message_appended"
	KindHistoryCompressed   Kind = "history_compressed"
	KindSessionStateChanged Kind = "session_state_changed"
)

var allKinds = []Kind{
	KindBeforeInit,
	KindAfterInit,
	KindBeforeLLMRequest,
	KindAfterLLMRequest,
	KindBeforeToolCall,
	KindAfterToolCall,
	KindFileCreated,
	KindFileUpdated,
	KindFileDeleted,
	KindAgentSuspended,
	KindError,
	KindMessageAppended,
	KindHistoryCompressed,
	KindSessionStateChanged,
}

// Kinds returns every event kind.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is one dispatch of a payload to the listeners of its kind.
// All listeners of a dispatch receive the same *Event.
type Event struct {
	Kind      Kind
	SessionID string
	Timestamp time.Time
	Payload   Payload

	stopped bool
}

// New creates an event for payload, stamped with the current time.
func New(payload Payload) *Event {
	return &Event{
		Kind:      payload.Kind(),
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// WithSession sets the session ID on the event.
func (e *Event) WithSession(sessionID string) *Event {
	e.SessionID = sessionID
	return e
}

// Stoppable reports whether listeners may halt this dispatch.
func (e *Event) Stoppable() bool {
	_, ok := e.Payload.(stoppable)
	return ok
}

// StopPropagation prevents later listeners from seeing this event.
// It returns false, and does nothing, for non-stoppable payloads.
func (e *Event) StopPropagation() bool {
	if !e.Stoppable() {
		return false
	}
	e.stopped = true
	return true
}

// PropagationStopped reports whether a listener stopped the dispatch.
func (e *Event) PropagationStopped() bool {
	return e.stopped
}

// Listener handles an event. A returned error is logged and counted but
// never aborts the dispatch.
type Listener func(ctx context.Context, event *Event) error

// Priority determines the order listeners are called. Lower runs first;
// equal priorities keep registration order.
type Priority int

const (
	PriorityHighest Priority = 0
	PriorityHigh    Priority = 25
	PriorityNormal  Priority = 50
	PriorityLow     Priority = 75
	PriorityLowest  Priority = 100
)

// Registration is a registered listener.
type Registration struct {
	ID       string
	Kind     Kind
	Listener Listener
	Priority Priority
	Name     string
	Source   string
}

// RegisterOption configures a registration.
type RegisterOption func(*Registration)

// WithPriority sets the listener priority.
func WithPriority(p Priority) RegisterOption {
	return func(r *Registration) {
		r.Priority = p
	}
}

// WithName sets the listener name for diagnostics.
func WithName(name string) RegisterOption {
	return func(r *Registration) {
		r.Name = name
	}
}

// WithSource records where the listener came from.
func WithSource(source string) RegisterOption {
	return func(r *Registration) {
		r.Source = source
	}
}
