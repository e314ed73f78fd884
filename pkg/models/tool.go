package models

import "encoding/json"

// System flags a tool result can raise for the agent loop's state machine.
const (
	// FlagTaskComplete ends the run successfully.
	FlagTaskComplete = "task_complete"

	// FlagSuspend pauses the run until the next user message.
	FlagSuspend = "agent_suspended"
)

// ToolDescriptor declares a capability the model may call.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResult is the uniform outcome of a tool execution.
//
// OK is true exactly when Error is empty. Content carries the output on
// success, Error the human-readable failure otherwise.
type ToolResult struct {
	OK         bool   `json:"ok"`
	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
	SystemFlag string `json:"system_flag,omitempty"`
	Detail     any    `json:"detail,omitempty"`
}

// Success builds a successful result.
func Success(content string) ToolResult {
	return ToolResult{OK: true, Content: content}
}

// Failure builds a failed result.
func Failure(message string) ToolResult {
	if message == "" {
		message = "tool failed"
	}
	return ToolResult{OK: false, Error: message}
}

// WithFlag returns a copy of the result carrying a system flag.
func (r ToolResult) WithFlag(flag string) ToolResult {
	r.SystemFlag = flag
	return r
}

// WithDetail returns a copy of the result carrying structured detail.
func (r ToolResult) WithDetail(detail any) ToolResult {
	r.Detail = detail
	return r
}

// Text is the text fed back to the model for this result.
func (r ToolResult) Text() string {
	if r.OK {
		return r.Content
	}
	return "Error: " + r.Error
}

// Normalize enforces the OK/Error invariant. A success without content gets
// a placeholder so it is never empty; a failure without an error message
// gets a generic one.
func (r ToolResult) Normalize() ToolResult {
	if r.Error != "" {
		r.OK = false
		return r
	}
	if !r.OK {
		if r.Content != "" {
			r.Error = r.Content
			r.Content = ""
		} else {
			r.Error = "tool failed"
		}
		return r
	}
	if r.Content == "" {
		r.Content = "ok"
	}
	return r
}
