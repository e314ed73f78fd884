package models

// Usage counts tokens consumed by model calls within a session.
type Usage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

// Add accumulates another usage report. Negative counts are ignored so the
// totals never decrease.
func (u *Usage) Add(other Usage) {
	if other.Input > 0 {
		u.Input += other.Input
	}
	if other.Output > 0 {
		u.Output += other.Output
	}
	total := other.Total
	if total <= 0 {
		total = max(other.Input, 0) + max(other.Output, 0)
	}
	u.Total += total
}

// FrameType identifies a frame sent to the transport.
type FrameType string

const (
	FrameMessage    FrameType = "message"
	FrameToolCall   FrameType = "tool_call"
	FrameToolResult FrameType = "tool_result"
	FrameThinking   FrameType = "thinking"
	FrameTaskUpdate FrameType = "task_update"
	FrameError      FrameType = "error"
)

// Frame is one event written to a transport sink.
type Frame struct {
	Type      FrameType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}
