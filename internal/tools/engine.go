package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 30 * time.Second

// Engine executes registered tools. Every failure mode is reported as a
// failed models.ToolResult; Execute never returns an error or panics.
type Engine struct {
	registry *Registry
	bus      *events.Bus
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	timeout  time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records tool executions.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer wraps each execution in a span.
func WithTracer(t *observability.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithDefaultTimeout sets the timeout for tools registered without one.
func WithDefaultTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates an engine over registry publishing to bus. A nil bus
// disables before/after events.
func NewEngine(registry *Registry, bus *events.Bus, opts ...EngineOption) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		registry: registry,
		bus:      bus,
		logger:   slog.Default(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "tools")
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Descriptors returns the registered descriptors sorted by name.
func (e *Engine) Descriptors() []models.ToolDescriptor {
	return e.registry.Descriptors()
}

// Execute runs the named tool with raw JSON arguments.
func (e *Engine) Execute(ctx context.Context, name string, rawArgs json.RawMessage, store *extensions.Store) models.ToolResult {
	return e.execute(ctx, "", name, rawArgs, store)
}

// ExecuteCall runs a model-requested tool call.
func (e *Engine) ExecuteCall(ctx context.Context, call models.ToolCall, store *extensions.Store) models.ToolResult {
	return e.execute(observability.AddToolCallID(ctx, call.ID), call.ID, call.Name, call.Arguments, store)
}

func (e *Engine) execute(ctx context.Context, callID, name string, rawArgs json.RawMessage, store *extensions.Store) models.ToolResult {
	if len(name) > MaxToolNameLength {
		return models.Failure(fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength))
	}
	tool, ok := e.registry.lookup(name)
	if !ok {
		err := &UnknownToolError{Name: name}
		e.logger.DebugContext(ctx, "unknown tool requested", "tool", name)
		return models.Failure(err.Error())
	}

	params, err := e.validate(tool, rawArgs)
	if err != nil {
		e.logger.DebugContext(ctx, "tool arguments rejected", "tool", name, "error", err)
		return models.Failure(err.Error()).WithDetail(err)
	}
	if store == nil {
		store = extensions.NewStore()
	}

	ctx, span := e.tracer.TraceToolExecution(ctx, name)
	defer span.End()

	e.bus.Publish(ctx, events.New(events.BeforeToolCall{
		CallID:    callID,
		ToolName:  name,
		Arguments: params.Map(),
		Store:     store,
	}).WithSession(observability.GetSessionID(ctx)))

	start := time.Now()
	result := e.invoke(ctx, tool, store, params)
	duration := time.Since(start)

	if !result.OK {
		e.tracer.RecordError(span, errors.New(result.Error))
	}
	e.metrics.RecordToolExecution(name, result.OK, duration)
	e.logger.DebugContext(ctx, "tool executed",
		"tool", name,
		"ok", result.OK,
		"duration_ms", duration.Milliseconds())

	// The after event fires even when ctx is already canceled.
	e.bus.Publish(context.WithoutCancel(ctx), events.New(events.AfterToolCall{
		CallID:    callID,
		ToolName:  name,
		Arguments: params.Map(),
		Store:     store,
		Result:    result,
		Duration:  duration,
	}).WithSession(observability.GetSessionID(ctx)))

	return result
}

func (e *Engine) validate(tool *entry, rawArgs json.RawMessage) (Params, error) {
	name := tool.descriptor.Name
	if len(rawArgs) > MaxToolParamsSize {
		return Params{}, &ValidationError{Tool: name, Problems: []string{
			fmt.Sprintf("arguments exceed maximum size of %d bytes", MaxToolParamsSize),
		}}
	}
	if len(bytes.TrimSpace(rawArgs)) == 0 {
		rawArgs = json.RawMessage("{}")
	}

	var decoded any
	if err := json.Unmarshal(rawArgs, &decoded); err != nil {
		return Params{}, &ValidationError{Tool: name, Problems: []string{"arguments are not valid JSON: " + err.Error()}}
	}
	if err := tool.schema.Validate(decoded); err != nil {
		return Params{}, &ValidationError{Tool: name, Problems: validationProblems(err)}
	}
	values, ok := decoded.(map[string]any)
	if !ok {
		return Params{}, &ValidationError{Tool: name, Problems: []string{"arguments must be a JSON object"}}
	}
	return NewParams(rawArgs, values), nil
}

func (e *Engine) invoke(ctx context.Context, tool *entry, store *extensions.Store, params Params) models.ToolResult {
	timeout := tool.timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result models.ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	name := tool.descriptor.Name

	go func() {
		var out outcome
		defer func() {
			if p := recover(); p != nil {
				out = outcome{err: &PanicError{Tool: name, Value: p}}
			}
			done <- out
		}()
		out.result, out.err = tool.handler.Execute(toolCtx, store, params)
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if toolCtx.Err() != nil && errors.Is(out.err, toolCtx.Err()) {
				return models.Failure(interruptError(ctx, toolCtx, timeout).Error())
			}
			e.logger.WarnContext(ctx, "tool handler failed", "tool", name, "error", out.err)
			return models.Failure(out.err.Error())
		}
		return out.result.Normalize()
	case <-toolCtx.Done():
		err := interruptError(ctx, toolCtx, timeout)
		e.logger.WarnContext(ctx, "tool execution abandoned",
			"tool", name,
			"error", err)
		return models.Failure(err.Error())
	}
}

func interruptError(parent, toolCtx context.Context, timeout time.Duration) error {
	if errors.Is(toolCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w after %v", ErrToolTimeout, timeout)
	}
	return ErrToolCanceled
}
