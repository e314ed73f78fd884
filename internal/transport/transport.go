// Package transport carries frames to a client and user messages back,
// either as JSON lines over a byte stream or over a WebSocket.
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ErrClosed is returned by writes after the sink was closed.
var ErrClosed = errors.New("transport closed")

// Inbound is the client-to-agent message shape.
type Inbound struct {
	Type    string `json:"type,omitempty"`
	Content string `json:"content"`
}

// DecodeMessage parses one inbound payload. A JSON object is read as an
// Inbound; anything else is taken as plain user text.
func DecodeMessage(data []byte) (models.Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return models.Message{}, errors.New("empty message")
	}
	if trimmed[0] != '{' {
		return models.NewUserMessage(string(trimmed)), nil
	}

	var in Inbound
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return models.Message{}, fmt.Errorf("invalid message: %w", err)
	}
	if in.Type != "" && in.Type != "message" {
		return models.Message{}, fmt.Errorf("unsupported message type %q", in.Type)
	}
	if strings.TrimSpace(in.Content) == "" {
		return models.Message{}, errors.New("message content is required")
	}
	return models.NewUserMessage(in.Content), nil
}
