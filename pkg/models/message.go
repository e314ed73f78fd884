// Package models holds the data types shared by the agent core, its transports
// and its persistence layer.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message is one entry of a session's chat history.
//
// The populated fields depend on Role:
//   - assistant messages may carry ToolCalls
//   - tool messages carry ToolCallID and the tool's textual Content
//   - system messages flagged with Summary replace a compressed prefix
type Message struct {
	ID         string         `json:"id"`
	Seq        int64          `json:"seq"`
	Role       Role           `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Summary    bool           `json:"summary,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, content)
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return newMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message with optional tool call requests.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	msg := newMessage(RoleAssistant, content)
	if len(calls) > 0 {
		msg.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return msg
}

// NewToolMessage creates the observation message answering a tool call.
func NewToolMessage(call ToolCall, result ToolResult) Message {
	msg := newMessage(RoleTool, result.Text())
	msg.ToolCallID = call.ID
	msg.ToolName = call.Name
	if !result.OK {
		msg.Metadata = map[string]any{"is_error": true}
	}
	return msg
}

// NewSummaryMessage creates the synthetic message that stands in for a
// compressed history prefix.
func NewSummaryMessage(content string) Message {
	msg := newMessage(RoleSystem, content)
	msg.Summary = true
	return msg
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// HasToolCalls reports whether the message requests tool execution.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, call := range m.ToolCalls {
			out.ToolCalls[i] = call.Clone()
		}
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// NewToolCall creates a tool call with a generated ID.
func NewToolCall(name string, arguments json.RawMessage) ToolCall {
	return ToolCall{
		ID:        "call_" + uuid.NewString(),
		Name:      name,
		Arguments: arguments,
	}
}

// Clone returns a copy of the call that does not share the argument buffer.
func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Arguments != nil {
		out.Arguments = append(json.RawMessage(nil), c.Arguments...)
	}
	return out
}
