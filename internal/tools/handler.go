package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Handler implements one tool. Params have already passed schema
// validation. A returned error becomes a failed result.
type Handler interface {
	Execute(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
	return f(ctx, store, params)
}

// Params are validated tool arguments.
type Params struct {
	raw    json.RawMessage
	values map[string]any
}

// NewParams builds Params from a decoded argument object.
func NewParams(raw json.RawMessage, values map[string]any) Params {
	if values == nil {
		values = map[string]any{}
	}
	return Params{raw: raw, values: values}
}

// Raw returns the arguments as received.
func (p Params) Raw() json.RawMessage {
	if len(p.raw) == 0 {
		return json.RawMessage("{}")
	}
	return p.raw
}

// Map returns the decoded argument object.
func (p Params) Map() map[string]any {
	return p.values
}

// Decode unmarshals the arguments into v.
func (p Params) Decode(v any) error {
	if err := json.Unmarshal(p.Raw(), v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// String returns a string argument, or "" when absent or not a string.
func (p Params) String(key string) string {
	s, _ := p.values[key].(string)
	return s
}

// Bool returns a boolean argument, or false when absent.
func (p Params) Bool(key string) bool {
	b, _ := p.values[key].(bool)
	return b
}
