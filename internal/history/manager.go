// Package history tracks a session's message sequence under a token budget
// and compresses the oldest messages into a summary when the budget fills.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Summarizer condenses a run of messages into one message of roughly
// targetLen characters.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []models.Message, targetLen int) (models.Message, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, msgs []models.Message, targetLen int) (models.Message, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, msgs []models.Message, targetLen int) (models.Message, error) {
	return f(ctx, msgs, targetLen)
}

// Metadata keys set on summary messages.
const (
	MetaCoversUntil = "covers_until_seq"
	MetaReplaced    = "replaced_messages"
)

// AppendResult describes the outcome of Append.
type AppendResult struct {
	Seq  int64
	Cost int
	// Compression is set when the append triggered a compression pass.
	Compression *CompressResult
}

// CompressResult describes one compression pass.
type CompressResult struct {
	Compressed bool
	Replaced   int
	CostBefore int
	CostAfter  int
	// Err is a *CompressionIneffectiveError or wraps ErrSummarizerFailed
	// when the pass left history unchanged.
	Err error
}

// Manager holds one session's history. All methods are safe for
// concurrent use; appends and compression passes are serialized.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	tokenizer  Tokenizer
	summarizer Summarizer

	bus       *events.Bus
	sessionID string
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer

	messages []models.Message
	costs    []int
	cost     int
	lastSeq  int64
	usage    models.Usage
}

// Option configures a Manager.
type Option func(*Manager)

// WithTokenizer replaces the default character tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tokenizer = t
		}
	}
}

// WithEvents publishes message and compression events for sessionID.
func WithEvents(bus *events.Bus, sessionID string) Option {
	return func(m *Manager) {
		m.bus = bus
		m.sessionID = sessionID
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records compression outcomes.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTracer traces compression passes.
func WithTracer(tracer *observability.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// NewManager creates an empty history. Zero TokenBudget, TriggerRatio and
// SummaryTargetLength take defaults; KeepRecent is used as given.
func NewManager(cfg Config, summarizer Summarizer, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:        cfg,
		tokenizer:  CharTokenizer{},
		summarizer: summarizer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "history")
	return m, nil
}

// Config returns the compression policy.
func (m *Manager) Config() Config {
	return m.cfg
}

// Append adds msg, assigning its sequence number, then compresses if the
// running cost exceeds the trigger threshold. Compression failures are
// reported in the result and logged; they do not fail the append.
func (m *Manager) Append(ctx context.Context, msg models.Message) (AppendResult, error) {
	if !msg.Role.Valid() {
		return AppendResult{}, fmt.Errorf("%w: role %q", ErrInvalidMessage, msg.Role)
	}

	m.mu.Lock()
	msg = msg.Clone()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	m.lastSeq++
	msg.Seq = m.lastSeq
	cost := m.tokenizer.Count(msg)
	m.messages = append(m.messages, msg)
	m.costs = append(m.costs, cost)
	m.cost += cost

	result := AppendResult{Seq: msg.Seq}
	pending := []events.Payload{events.MessageAppended{Message: msg.Clone(), Cost: cost}}

	if float64(m.cost) > m.cfg.Threshold() {
		compression, payload := m.compressLocked(ctx)
		result.Compression = &compression
		if payload != nil {
			pending = append(pending, payload)
		}
	}
	result.Cost = m.cost
	m.mu.Unlock()

	m.publish(ctx, pending)
	return result, nil
}

// Compress runs a compression pass if the history is over its trigger
// threshold. Under the threshold it does nothing and returns a result
// with Compressed false and a nil error.
func (m *Manager) Compress(ctx context.Context) (CompressResult, error) {
	m.mu.Lock()
	if float64(m.cost) <= m.cfg.Threshold() {
		result := CompressResult{CostBefore: m.cost, CostAfter: m.cost}
		m.mu.Unlock()
		return result, nil
	}
	result, payload := m.compressLocked(ctx)
	m.mu.Unlock()

	if payload != nil {
		m.publish(ctx, []events.Payload{payload})
	}
	return result, result.Err
}

// compressLocked replaces the longest eligible prefix with a summary.
// Callers must hold m.mu.
func (m *Manager) compressLocked(ctx context.Context) (CompressResult, events.Payload) {
	ctx, span := m.tracer.TraceCompression(ctx, len(m.messages), m.cost)
	defer span.End()

	result := CompressResult{CostBefore: m.cost, CostAfter: m.cost}
	prefix := m.eligiblePrefix()

	fail := func(err error, outcome string) (CompressResult, events.Payload) {
		result.Err = err
		m.metrics.RecordCompression(outcome)
		m.tracer.RecordError(span, err)
		m.logger.WarnContext(ctx, "history compression skipped",
			"session_id", m.sessionID,
			"cost", m.cost,
			"threshold", m.cfg.Threshold(),
			"error", err)
		return result, nil
	}

	if prefix == 0 || (prefix == 1 && m.messages[0].Summary) {
		return fail(&CompressionIneffectiveError{
			CostBefore: m.cost,
			CostAfter:  m.cost,
			Eligible:   prefix,
			Reason:     "not enough messages outside the recent window",
		}, "ineffective")
	}
	if m.summarizer == nil {
		return fail(ErrNoSummarizer, "failed")
	}

	replaced := make([]models.Message, prefix)
	prefixCost := 0
	for i := 0; i < prefix; i++ {
		replaced[i] = m.messages[i].Clone()
		prefixCost += m.costs[i]
	}

	summary, err := m.summarizer.Summarize(ctx, replaced, m.cfg.SummaryTargetLength)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSummarizerFailed, err), "failed")
	}

	last := replaced[len(replaced)-1]
	summary.Role = models.RoleSystem
	summary.Summary = true
	summary.ToolCalls = nil
	summary.ToolCallID = ""
	summary.Seq = last.Seq
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.Metadata == nil {
		summary.Metadata = map[string]any{}
	}
	summary.Metadata[MetaCoversUntil] = last.Seq
	summary.Metadata[MetaReplaced] = prefix

	summaryCost := m.tokenizer.Count(summary)
	newCost := m.cost - prefixCost + summaryCost
	if newCost >= m.cost {
		result.CostAfter = newCost
		return fail(&CompressionIneffectiveError{
			CostBefore: m.cost,
			CostAfter:  newCost,
			Eligible:   prefix,
		}, "ineffective")
	}

	messages := make([]models.Message, 0, len(m.messages)-prefix+1)
	messages = append(messages, summary)
	messages = append(messages, m.messages[prefix:]...)
	costs := make([]int, 0, len(messages))
	costs = append(costs, summaryCost)
	costs = append(costs, m.costs[prefix:]...)

	m.messages = messages
	m.costs = costs
	m.cost = newCost

	result.Compressed = true
	result.Replaced = prefix
	result.CostAfter = newCost
	m.metrics.RecordCompression("compressed")
	m.logger.InfoContext(ctx, "history compressed",
		"session_id", m.sessionID,
		"replaced", prefix,
		"cost_before", result.CostBefore,
		"cost_after", newCost)

	return result, events.HistoryCompressed{
		Replaced:   prefix,
		CostBefore: result.CostBefore,
		CostAfter:  newCost,
	}
}

// eligiblePrefix returns how many leading messages may be compressed: all
// but the KeepRecent tail, shortened so the tail never opens with a tool
// result separated from the assistant message that requested it.
func (m *Manager) eligiblePrefix() int {
	prefix := len(m.messages) - m.cfg.KeepRecent
	for prefix > 0 && prefix < len(m.messages) && m.messages[prefix].Role == models.RoleTool {
		prefix--
	}
	if prefix < 0 {
		return 0
	}
	return prefix
}

func (m *Manager) publish(ctx context.Context, payloads []events.Payload) {
	if m.bus == nil {
		return
	}
	for _, p := range payloads {
		m.bus.Emit(ctx, m.sessionID, p)
	}
}

// Messages returns a deep copy of the history.
func (m *Manager) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.Clone()
	}
	return out
}

// Len returns the number of messages in the history.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Cost returns the running token cost of the history.
func (m *Manager) Cost() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost
}

// AddUsage accumulates model token usage. Negative counts are ignored so
// usage never decreases.
func (m *Manager) AddUsage(u models.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Add(u)
}

// Usage returns the accumulated token usage.
func (m *Manager) Usage() models.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// Snapshot is the serializable state of a history.
type Snapshot struct {
	Messages []models.Message `json:"messages"`
	Usage    models.Usage     `json:"usage"`
	LastSeq  int64            `json:"last_seq"`
}

// Snapshot captures the history for persistence.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]models.Message, len(m.messages))
	for i, msg := range m.messages {
		msgs[i] = msg.Clone()
	}
	return Snapshot{Messages: msgs, Usage: m.usage, LastSeq: m.lastSeq}
}

// Restore replaces the history with snap. Sequence numbers must strictly
// increase and only the first message may be a summary.
func (m *Manager) Restore(snap Snapshot) error {
	var prev int64
	for i, msg := range snap.Messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidSnapshot, i, msg.Role)
		}
		if msg.Seq <= prev {
			return fmt.Errorf("%w: sequence %d follows %d", ErrInvalidSnapshot, msg.Seq, prev)
		}
		if msg.Summary && i != 0 {
			return fmt.Errorf("%w: summary at position %d", ErrInvalidSnapshot, i)
		}
		prev = msg.Seq
	}
	if snap.LastSeq < prev {
		snap.LastSeq = prev
	}

	msgs := make([]models.Message, len(snap.Messages))
	costs := make([]int, len(snap.Messages))
	total := 0
	for i, msg := range snap.Messages {
		msgs[i] = msg.Clone()
		costs[i] = m.tokenizer.Count(msg)
		total += costs[i]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = msgs
	m.costs = costs
	m.cost = total
	m.lastSeq = snap.LastSeq
	m.usage = snap.Usage
	return nil
}

// IsIneffective reports whether err is a *CompressionIneffectiveError.
func IsIneffective(err error) bool {
	var target *CompressionIneffectiveError
	return errors.As(err, &target)
}
