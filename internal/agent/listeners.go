package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// RegisterLogListener logs every event at debug level. It runs after all
// other listeners.
func RegisterLogListener(bus *events.Bus, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "events")
	listener := func(ctx context.Context, e *events.Event) error {
		attrs := []any{"kind", e.Kind, "session_id", e.SessionID}
		switch p := e.Payload.(type) {
		case events.AfterToolCall:
			attrs = append(attrs, "tool", p.ToolName, "ok", p.Result.OK, "duration", p.Duration)
		case events.AfterLLMRequest:
			attrs = append(attrs, "iteration", p.Iteration, "duration", p.Duration, "error", p.Err)
		case events.SessionStateChanged:
			attrs = append(attrs, "from", p.From, "to", p.To)
		case events.FileCreated:
			attrs = append(attrs, "path", p.Path, "source", p.Source)
		case events.FileUpdated:
			attrs = append(attrs, "path", p.Path, "source", p.Source)
		case events.FileDeleted:
			attrs = append(attrs, "path", p.Path, "source", p.Source)
		case events.Error:
			attrs = append(attrs, "stage", p.Stage, "error", p.Err)
		}
		logger.DebugContext(ctx, "event published", attrs...)
		return nil
	}

	ids := make([]string, 0, len(events.Kinds()))
	for _, kind := range events.Kinds() {
		ids = append(ids, bus.Register(kind, listener,
			events.WithPriority(events.PriorityLowest),
			events.WithName("log"),
			events.WithSource("agent")))
	}
	return ids
}

// RegisterMetricsListener records model request metrics from
// after_llm_request events.
func RegisterMetricsListener(bus *events.Bus, metrics *observability.Metrics) string {
	return bus.Register(events.KindAfterLLMRequest, func(_ context.Context, e *events.Event) error {
		p, ok := e.Payload.(events.AfterLLMRequest)
		if !ok {
			return nil
		}
		metrics.RecordLLMRequest(p.Provider, p.Err == nil, p.Duration, p.Usage.Input, p.Usage.Output)
		return nil
	}, events.WithPriority(events.PriorityLow), events.WithName("metrics"), events.WithSource("agent"))
}

// RegisterCompletionDetector records a Completion in the call's context
// store when a tool reports the task complete. It runs before other
// after_tool_call listeners so a stopped event still records completion.
// The detector is registered at most once per bus; later calls return the
// existing registration ID.
func RegisterCompletionDetector(bus *events.Bus) string {
	id, _ := bus.RegisterUnique(events.KindAfterToolCall, func(_ context.Context, e *events.Event) error {
		p, ok := e.Payload.(events.AfterToolCall)
		if !ok || p.Store == nil {
			return nil
		}
		if p.Result.OK && p.Result.SystemFlag == models.FlagTaskComplete {
			p.Store.Put(CompletionExtension, Completion{
				Summary: p.Result.Content,
				Tool:    p.ToolName,
				At:      time.Now(),
			})
		}
		return nil
	}, events.WithPriority(events.PriorityHighest), events.WithName("task-completion"), events.WithSource("agent"))
	return id
}

// Frame payloads written by FrameStreamer.
type (
	MessageFrame struct {
		Role    models.Role `json:"role"`
		Content string      `json:"content"`
		Seq     int64       `json:"seq"`
	}

	ToolCallFrame struct {
		CallID    string         `json:"call_id"`
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}

	ToolResultFrame struct {
		CallID     string `json:"call_id"`
		Tool       string `json:"tool"`
		OK         bool   `json:"ok"`
		Content    string `json:"content,omitempty"`
		Error      string `json:"error,omitempty"`
		SystemFlag string `json:"system_flag,omitempty"`
		DurationMS int64  `json:"duration_ms"`
	}

	ThinkingFrame struct {
		Iteration int `json:"iteration"`
	}

	TaskUpdateFrame struct {
		State  string `json:"state"`
		Reason string `json:"reason,omitempty"`
	}

	ErrorFrame struct {
		Stage   string `json:"stage"`
		Message string `json:"message"`
	}
)

// FrameStreamer turns one session's events into transport frames.
type FrameStreamer struct {
	sink      Sink
	sessionID string
	logger    *slog.Logger

	mu sync.Mutex
}

// NewFrameStreamer creates a streamer writing sessionID's frames to sink.
func NewFrameStreamer(sink Sink, sessionID string, logger *slog.Logger) *FrameStreamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameStreamer{sink: sink, sessionID: sessionID, logger: logger}
}

// Register subscribes the streamer and returns the registration IDs.
func (f *FrameStreamer) Register(bus *events.Bus) []string {
	opts := func(name string) []events.RegisterOption {
		return []events.RegisterOption{
			events.WithPriority(events.PriorityLow),
			events.WithName("frames:" + name),
			events.WithSource(f.sessionID),
		}
	}
	return []string{
		bus.Register(events.KindMessageAppended, f.onMessage, opts("message")...),
		bus.Register(events.KindBeforeLLMRequest, f.onThinking, opts("thinking")...),
		bus.Register(events.KindBeforeToolCall, f.onToolCall, opts("tool_call")...),
		bus.Register(events.KindAfterToolCall, f.onToolResult, opts("tool_result")...),
		bus.Register(events.KindSessionStateChanged, f.onState, opts("task_update")...),
		bus.Register(events.KindAgentSuspended, f.onSuspended, opts("suspended")...),
		bus.Register(events.KindError, f.onError, opts("error")...),
	}
}

func (f *FrameStreamer) write(ctx context.Context, typ models.FrameType, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.sink.Write(ctx, models.Frame{Type: typ, SessionID: f.sessionID, Payload: payload})
	return err
}

func (f *FrameStreamer) mine(e *events.Event) bool {
	return e.SessionID == f.sessionID
}

func (f *FrameStreamer) onMessage(ctx context.Context, e *events.Event) error {
	p, ok := e.Payload.(events.MessageAppended)
	if !ok || !f.mine(e) {
		return nil
	}
	if p.Message.Role != models.RoleAssistant || p.Message.Content == "" {
		return nil
	}
	return f.write(ctx, models.FrameMessage, MessageFrame{
		Role:    p.Message.Role,
		Content: p.Message.Content,
		Seq:     p.Message.Seq,
	})
}

func (f *FrameStreamer) onThinking(ctx context.Context, e *events.Event) error {
	p, ok := e.Payload.(events.BeforeLLMRequest)
	if !ok || !f.mine(e) {
		return nil
	}
	return f.write(ctx, models.FrameThinking, ThinkingFrame{Iteration: p.Iteration})
}

func (f *FrameStreamer) onToolCall(ctx context.Context, e *events.Event) error {
	p, ok := e.Payload.(events.BeforeToolCall)
	if !ok || !f.mine(e) {
		return nil
	}
	return f.write(ctx, models.FrameToolCall, ToolCallFrame{
		CallID:    p.CallID,
		Tool:      p.ToolName,
		Arguments: p.Arguments,
	})
}

func (f *FrameStreamer) onToolResult(ctx context.Context, e *events.Event) error {
	p, ok := e.Payload.(events.AfterToolCall)
	if !ok || !f.mine(e) {
		return nil
	}
	return f.write(ctx, models.FrameToolResult, ToolResultFrame{
		CallID:     p.CallID,
		Tool:       p.ToolName,
		OK:         p.Result.OK,
		Content:    p.Result.Content,
		Error:      p.Result.Error,
		SystemFlag: p.Result.SystemFlag,
		DurationMS: p.Duration.Milliseconds(),
	})
}

func (f *FrameStreamer) onState(ctx context.Context, e *events.Event) error {
	p, ok := e.Payload.(events.SessionStateChanged)
	if !ok || !f.mine(e) {
		return nil
	}
	switch State(p.To) {
	case StateFinished, StateError, StateSuspended:
	default:
		return nil
	}
	return f.write(ctx, models.FrameTaskUpdate, TaskUpdateFrame{State: p.To})
}

func (f *FrameStreamer) onSuspended(ctx context.Context, e *events.Event) error {
	p, ok := e.Payload.(events.AgentSuspended)
	if !ok || !f.mine(e) {
		return nil
	}
	return f.write(ctx, models.FrameTaskUpdate, TaskUpdateFrame{State: string(StateSuspended), Reason: p.Reason})
}

func (f *FrameStreamer) onError(ctx context.Context, e *events.Event) error {
	p, ok := e.Payload.(events.Error)
	if !ok || !f.mine(e) {
		return nil
	}
	return f.writeError(ctx, p.Stage, p.Err)
}

func (f *FrameStreamer) writeError(ctx context.Context, stage string, err error) error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	werr := f.write(context.WithoutCancel(ctx), models.FrameError, ErrorFrame{Stage: stage, Message: msg})
	if werr != nil && !errors.Is(werr, context.Canceled) {
		f.logger.WarnContext(ctx, "failed to write error frame", "error", werr)
	}
	return werr
}
