// Package agent drives the conversation loop: it sends history to the
// model, executes the tool calls it requests and feeds the results back
// until the model answers, a tool finishes the task or a tool suspends the
// run for user input.
//
// The loop is a state machine over State:
//
//	idle ──▶ running ──▶ awaiting_tool ──▶ running ──▶ … ──▶ finished
//	                │                  │
//	                ▼                  ▼
//	              error            suspended
//
// Every transition is published as a session_state_changed event.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/retry"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultMaxIterations bounds model requests per run.
const DefaultMaxIterations = 10

// Runner executes runs for sessions. One Runner serves many sessions; all
// per-session state lives on the Session.
type Runner struct {
	model         Model
	engine        *tools.Engine
	bus           *events.Bus
	retrier       *retry.Retrier
	snapshots     SnapshotSaver
	logger        *slog.Logger
	tracer        *observability.Tracer
	maxIterations int
	modelName     string
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxIterations bounds model requests per run.
func WithMaxIterations(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithRetry sets the retry policy for model requests.
func WithRetry(retrier *retry.Retrier) Option {
	return func(r *Runner) {
		if retrier != nil {
			r.retrier = retrier
		}
	}
}

// WithSnapshots persists history after every run.
func WithSnapshots(saver SnapshotSaver) Option {
	return func(r *Runner) {
		r.snapshots = saver
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer traces model requests.
func WithTracer(tracer *observability.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithModelName sets the model label recorded on spans.
func WithModelName(name string) Option {
	return func(r *Runner) {
		r.modelName = name
	}
}

// NewRunner creates a runner. The engine must share bus so tool events
// reach the same listeners.
func NewRunner(model Model, engine *tools.Engine, bus *events.Bus, opts ...Option) *Runner {
	r := &Runner{
		model:         model,
		engine:        engine,
		bus:           bus,
		retrier:       retry.New(retry.DefaultConfig()),
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "agent")
	if r.engine == nil {
		r.engine = tools.NewEngine(nil, bus)
	}
	if bus != nil {
		RegisterCompletionDetector(bus)
	}
	return r
}

// Bus returns the runner's event bus.
func (r *Runner) Bus() *events.Bus {
	return r.bus
}

// Result describes a completed run.
type Result struct {
	RunID string
	// Reply is the last assistant message of the run.
	Reply      models.Message
	State      State
	Iterations int
	ToolCalls  int
	// Completion is set when a tool finished the task and the completion
	// detector on the runner's bus recorded it. A runner without a bus
	// still finishes the run but records no Completion.
	Completion *Completion
	Usage      models.Usage
}

// Init publishes the session's before/after init events. Run calls it on
// first use; calling it again is a no-op.
func (r *Runner) Init(ctx context.Context, s *Session) {
	if !s.markInitialized() {
		return
	}
	ctx = observability.AddSessionID(ctx, s.ID)
	r.emit(ctx, s, events.BeforeInit{SessionID: s.ID})

	descriptors := r.engine.Descriptors()
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	r.emit(ctx, s, events.AfterInit{SessionID: s.ID, Tools: names})
	r.logger.InfoContext(ctx, "session initialized", "tools", len(names))
}

// Run processes one user message to completion. It returns when the model
// answers without tool calls, a tool finishes the task or suspends the
// run, the iteration limit is reached, or the model endpoint fails after
// retries. Errors leave the session in StateError.
func (r *Runner) Run(ctx context.Context, s *Session, msg models.Message) (*Result, error) {
	if r.model == nil {
		return nil, ErrNoModel
	}
	if s == nil || s.History == nil {
		return nil, errors.New("session has no history")
	}
	if msg.Role == "" {
		msg.Role = models.RoleUser
	}
	if msg.Role != models.RoleUser || strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidMessage, msg.Role)
	}

	r.Init(ctx, s)

	prev, ok := s.begin()
	if !ok {
		return nil, ErrSessionBusy
	}
	result := &Result{RunID: uuid.NewString()}
	ctx = observability.AddSessionID(ctx, s.ID)
	ctx = observability.AddRunID(ctx, result.RunID)
	r.emit(ctx, s, events.SessionStateChanged{From: string(prev), To: string(StateRunning)})
	s.Store.Remove(CompletionExtension)

	start := time.Now()
	r.logger.InfoContext(ctx, "run started")

	err := r.loop(ctx, s, msg, result)
	result.State = s.State()
	result.Usage = s.History.Usage()

	if err != nil {
		r.fail(ctx, s, err)
		result.State = StateError
	}
	r.persist(ctx, s)

	r.logger.InfoContext(ctx, "run finished",
		"state", result.State,
		"iterations", result.Iterations,
		"tool_calls", result.ToolCalls,
		"duration", time.Since(start),
		"error", err)
	return result, err
}

func (r *Runner) loop(ctx context.Context, s *Session, msg models.Message, result *Result) error {
	if _, err := s.History.Append(ctx, msg); err != nil {
		return &LoopError{Phase: PhaseHistory, Cause: err}
	}

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		result.Iterations = iteration + 1
		if err := ctx.Err(); err != nil {
			return &LoopError{Phase: PhaseModel, Iteration: iteration, Cause: err}
		}

		resp, err := r.request(ctx, s, iteration)
		if err != nil {
			return &LoopError{Phase: PhaseModel, Iteration: iteration, Cause: err}
		}
		s.History.AddUsage(resp.Usage)

		reply := resp.Message
		reply.Role = models.RoleAssistant
		if _, err := s.History.Append(ctx, reply); err != nil {
			return &LoopError{Phase: PhaseHistory, Iteration: iteration, Cause: err}
		}
		result.Reply = reply

		if !reply.HasToolCalls() {
			r.transition(ctx, s, StateFinished)
			return nil
		}

		r.transition(ctx, s, StateAwaitingTool)
		completed, suspended, err := r.executeTools(ctx, s, reply.ToolCalls, result)
		if err != nil {
			return &LoopError{Phase: PhaseExecuteTools, Iteration: iteration, Cause: err}
		}

		switch {
		case completed:
			if c, ok := s.Completion(); ok {
				result.Completion = &c
			}
			r.transition(ctx, s, StateFinished)
			return nil
		case suspended:
			r.transition(ctx, s, StateSuspended)
			return nil
		}
		r.transition(ctx, s, StateRunning)
	}

	return &LoopError{
		Phase:     PhaseModel,
		Iteration: r.maxIterations,
		Cause:     ErrMaxIterations,
		Message:   fmt.Sprintf("reached max iterations: %d", r.maxIterations),
	}
}

// request sends the history to the model under the retry policy and
// publishes the before/after events around it.
func (r *Runner) request(ctx context.Context, s *Session, iteration int) (models.ModelResponse, error) {
	history := s.History.Messages()
	if s.SystemPrompt != "" {
		history = append([]models.Message{models.NewSystemMessage(s.SystemPrompt)}, history...)
	}
	descriptors := r.engine.Descriptors()
	provider := modelName(r.model)

	r.emit(ctx, s, events.BeforeLLMRequest{
		Iteration: iteration,
		Messages:  len(history),
		Tools:     len(descriptors),
	})

	ctx, span := r.tracer.TraceLLMRequest(ctx, provider, r.modelName)
	defer span.End()

	retrier := *r.retrier
	retrier.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.WarnContext(ctx, "model request failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}

	start := time.Now()
	resp, outcome := retry.DoWithValue(ctx, &retrier, func(ctx context.Context) (models.ModelResponse, error) {
		return r.model.Send(ctx, history, descriptors)
	})
	duration := time.Since(start)

	after := events.AfterLLMRequest{
		Iteration: iteration,
		Provider:  provider,
		Usage:     resp.Usage,
		Duration:  duration,
		Err:       outcome.Err,
	}
	if outcome.Err == nil {
		reply := resp.Message.Clone()
		after.Response = &reply
	} else {
		r.tracer.RecordError(span, outcome.Err)
	}
	r.emit(context.WithoutCancel(ctx), s, after)

	if outcome.Err != nil {
		return models.ModelResponse{}, outcome.Err
	}
	return resp, nil
}

// executeTools runs every requested call in order and appends one tool
// message per call. All calls run even after one raises a system flag so
// each request gets its answer.
func (r *Runner) executeTools(ctx context.Context, s *Session, calls []models.ToolCall, result *Result) (completed, suspended bool, err error) {
	for _, call := range calls {
		res := r.engine.ExecuteCall(ctx, call, s.Store)
		result.ToolCalls++

		if _, err := s.History.Append(ctx, models.NewToolMessage(call, res)); err != nil {
			return false, false, err
		}

		switch res.SystemFlag {
		case models.FlagTaskComplete:
			if res.OK {
				completed = true
			}
		case models.FlagSuspend:
			if res.OK {
				suspended = true
				r.emit(ctx, s, events.AgentSuspended{ToolName: call.Name, Reason: res.Content})
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return false, false, err
	}
	return completed, suspended, nil
}

// transition moves s to next and publishes the change.
func (r *Runner) transition(ctx context.Context, s *Session, next State) {
	prev := s.setState(next)
	if prev == next {
		return
	}
	r.emit(ctx, s, events.SessionStateChanged{From: string(prev), To: string(next)})
}

func (r *Runner) fail(ctx context.Context, s *Session, err error) {
	stage := "run"
	var loopErr *LoopError
	if errors.As(err, &loopErr) {
		stage = string(loopErr.Phase)
	}
	ctx = context.WithoutCancel(ctx)
	r.emit(ctx, s, events.Error{Stage: stage, Err: err})
	r.transition(ctx, s, StateError)
	r.logger.ErrorContext(ctx, "run failed", "stage", stage, "error", err)
}

func (r *Runner) persist(ctx context.Context, s *Session) {
	if r.snapshots == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := r.snapshots.Save(ctx, s.ID, s.History.Snapshot()); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist session", "error", err)
	}
}

func (r *Runner) emit(ctx context.Context, s *Session, p events.Payload) {
	if r.bus == nil {
		return
	}
	r.bus.Emit(ctx, s.ID, p)
}

// Serve attaches sink to the session and runs every message read from it
// until the sink reports io.EOF or ctx ends. Frames for the session's
// events are written to the sink while Serve runs. A model endpoint
// failure ends Serve with that error; other run errors are reported to the
// sink as error frames and Serve keeps reading.
func (r *Runner) Serve(ctx context.Context, s *Session, sink Sink) error {
	streamer := NewFrameStreamer(sink, s.ID, r.logger)
	ids := streamer.Register(r.bus)
	defer func() {
		for _, id := range ids {
			r.bus.Unregister(id)
		}
	}()

	r.Init(ctx, s)
	for {
		msg, err := sink.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read from sink: %w", err)
		}

		if _, err := r.Run(ctx, s, msg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if IsModelError(err) && !errors.Is(err, ErrMaxIterations) {
				return err
			}
			if errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrSessionBusy) {
				streamer.writeError(ctx, "run", err)
			}
		}
	}
}
