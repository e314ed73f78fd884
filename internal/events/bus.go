package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/internal/observability"
)

// Bus manages listener registrations and event dispatch.
//
// Register and Publish may be called concurrently, but a single dispatch is
// strictly sequential: each listener sees the effects of the previous one.
// A nil *Bus accepts publishes and delivers them nowhere.
type Bus struct {
	listeners map[Kind][]*Registration // slices are replaced, never mutated in place
	byID      map[string]*Registration
	logger    *slog.Logger
	metrics   *observability.Metrics
	mu        sync.RWMutex
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithMetrics records published events and listener failures.
func WithMetrics(m *observability.Metrics) BusOption {
	return func(b *Bus) {
		b.metrics = m
	}
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		listeners: make(map[Kind][]*Registration),
		byID:      make(map[string]*Registration),
		logger:    logger.With("component", "events"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a listener for kind and returns its registration ID. On a
// nil bus it does nothing and returns "".
func (b *Bus) Register(kind Kind, listener Listener, opts ...RegisterOption) string {
	id, _ := b.register(kind, listener, false, opts)
	return id
}

// RegisterUnique is Register for named listeners that must exist at most
// once per kind. When a listener with the same name is already registered
// for kind, it returns that registration's ID and false.
func (b *Bus) RegisterUnique(kind Kind, listener Listener, opts ...RegisterOption) (string, bool) {
	return b.register(kind, listener, true, opts)
}

func (b *Bus) register(kind Kind, listener Listener, unique bool, opts []RegisterOption) (string, bool) {
	if b == nil {
		return "", false
	}
	reg := &Registration{
		ID:       uuid.New().String(),
		Kind:     kind,
		Listener: listener,
		Priority: PriorityNormal,
	}
	for _, opt := range opts {
		opt(reg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.listeners[kind]
	if unique && reg.Name != "" {
		for _, existing := range current {
			if existing.Name == reg.Name {
				return existing.ID, false
			}
		}
	}
	regs := make([]*Registration, 0, len(current)+1)
	regs = append(regs, current...)
	regs = append(regs, reg)
	sort.SliceStable(regs, func(i, j int) bool {
		return regs[i].Priority < regs[j].Priority
	})
	b.listeners[kind] = regs
	b.byID[reg.ID] = reg

	b.logger.Debug("registered listener",
		"id", reg.ID,
		"kind", kind,
		"name", reg.Name,
		"priority", reg.Priority)

	return reg.ID, true
}

// Unregister removes a listener by its registration ID.
func (b *Bus) Unregister(id string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, exists := b.byID[id]
	if !exists {
		return false
	}
	delete(b.byID, id)

	regs := b.listeners[reg.Kind]
	for i, r := range regs {
		if r.ID == id {
			next := make([]*Registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			b.listeners[reg.Kind] = next
			break
		}
	}

	b.logger.Debug("unregistered listener", "id", id, "kind", reg.Kind)
	return true
}

// Clear removes all listeners.
func (b *Bus) Clear() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = make(map[Kind][]*Registration)
	b.byID = make(map[string]*Registration)
}

// ListenerCount returns the number of listeners registered for kind.
func (b *Bus) ListenerCount(kind Kind) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[kind])
}

// Publish invokes every listener registered for the event's kind, in
// order, and returns once all invoked listeners have completed. Listener
// errors and panics are logged and collected in the result; they never
// reach the caller. A stoppable event halts at the listener that calls
// StopPropagation.
func (b *Bus) Publish(ctx context.Context, event *Event) (*Event, PublishResult) {
	if event == nil || event.Payload == nil {
		return event, PublishResult{}
	}
	if event.Kind == "" {
		event.Kind = event.Payload.Kind()
	}
	result := PublishResult{Kind: event.Kind}
	if b == nil {
		return event, result
	}

	b.mu.RLock()
	regs := b.listeners[event.Kind]
	b.mu.RUnlock()

	for _, reg := range regs {
		result.Invoked++
		if err := b.callListener(ctx, reg, event); err != nil {
			b.logger.WarnContext(ctx, "event listener error",
				"kind", event.Kind,
				"listener_id", reg.ID,
				"listener_name", reg.Name,
				"error", err)
			result.Failures = append(result.Failures, ListenerFailure{
				ListenerID: reg.ID,
				Name:       reg.Name,
				Err:        err,
			})
		}
		if event.PropagationStopped() {
			result.Stopped = true
			break
		}
	}

	b.metrics.RecordEvent(string(event.Kind), len(result.Failures))
	return event, result
}

// Emit wraps payload in a new event for sessionID and publishes it.
func (b *Bus) Emit(ctx context.Context, sessionID string, payload Payload) PublishResult {
	_, result := b.Publish(ctx, New(payload).WithSession(sessionID))
	return result
}

// PublishAsync publishes on a new goroutine. The returned channel receives
// exactly one result and is then closed.
func (b *Bus) PublishAsync(ctx context.Context, event *Event) <-chan PublishResult {
	done := make(chan PublishResult, 1)
	go func() {
		defer close(done)
		_, result := b.Publish(ctx, event)
		done <- result
	}()
	return done
}

func (b *Bus) callListener(ctx context.Context, reg *Registration, event *Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ListenerPanicError{Value: p}
		}
	}()
	return reg.Listener(ctx, event)
}

// PublishResult summarizes one dispatch.
type PublishResult struct {
	Kind     Kind
	Invoked  int
	Stopped  bool
	Failures []ListenerFailure
}

// OK reports whether every invoked listener succeeded.
func (r PublishResult) OK() bool {
	return len(r.Failures) == 0
}

// Err joins the listener failures, or returns nil.
func (r PublishResult) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// ListenerFailure records one failed listener invocation.
type ListenerFailure struct {
	ListenerID string
	Name       string
	Err        error
}

func (f ListenerFailure) Error() string {
	name := f.Name
	if name == "" {
		name = f.ListenerID
	}
	return fmt.Sprintf("listener %s: %v", name, f.Err)
}

func (f ListenerFailure) Unwrap() error {
	return f.Err
}

// ListenerPanicError reports a recovered listener panic.
type ListenerPanicError struct {
	Value any
}

func (e *ListenerPanicError) Error() string {
	return fmt.Sprintf("listener panic: %v", e.Value)
}
