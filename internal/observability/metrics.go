package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the agent core.
//
// All recording methods are safe to call on a nil receiver.
type Metrics struct {
	// ToolExecutions counts tool invocations.
	// Labels: tool, status (ok|error)
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// LLMRequests counts model endpoint calls.
	// Labels: provider, status (ok|error)
	LLMRequests *prometheus.CounterVec

	// LLMDuration measures model endpoint latency in seconds.
	// Labels: provider
	LLMDuration *prometheus.HistogramVec

	// LLMTokens tracks token consumption.
	// Labels: provider, type (input|output)
	LLMTokens *prometheus.CounterVec

	// EventsPublished counts published events.
	// Labels: kind
	EventsPublished *prometheus.CounterVec

	// ListenerFailures counts listener errors and panics.
	// Labels: kind
	ListenerFailures *prometheus.CounterVec

	// Compressions counts history compression attempts.
	// Labels: outcome (compressed|ineffective|failed)
	Compressions *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ToolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		LLMRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_requests_total",
				Help: "Total number of model endpoint requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		LLMDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_llm_request_duration_seconds",
				Help:    "Duration of model endpoint requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		LLMTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_tokens_total",
				Help: "Total number of tokens used by provider and type",
			},
			[]string{"provider", "type"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_events_published_total",
				Help: "Total number of events published on the bus by kind",
			},
			[]string{"kind"},
		),
		ListenerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_listener_failures_total",
				Help: "Total number of event listener failures by kind",
			},
			[]string{"kind"},
		),
		Compressions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_history_compressions_total",
				Help: "Total number of history compression attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordToolExecution records one tool call.
func (m *Metrics) RecordToolExecution(tool string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolExecutions.WithLabelValues(tool, statusLabel(ok)).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordLLMRequest records one model endpoint call and its token usage.
func (m *Metrics) RecordLLMRequest(provider string, ok bool, duration time.Duration, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(provider, statusLabel(ok)).Inc()
	m.LLMDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if inputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

// RecordEvent records a published event and its failed listener count.
func (m *Metrics) RecordEvent(kind string, failures int) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(kind).Inc()
	if failures > 0 {
		m.ListenerFailures.WithLabelValues(kind).Add(float64(failures))
	}
}

// RecordCompression records a compression attempt outcome.
func (m *Metrics) RecordCompression(outcome string) {
	if m == nil {
		return
	}
	m.Compressions.WithLabelValues(outcome).Inc()
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
