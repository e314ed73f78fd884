package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
		return models.Success(params.String("text")), nil
	})
}

var echoSchema = json.RawMessage(`{
  "type": "object",
  "required": ["text"],
  "properties": {"text": {"type": "string", "minLength": 1}},
  "additionalProperties": false
}`)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	desc := models.ToolDescriptor{Name: "echo", Description: "Echo text", Parameters: echoSchema}

	if err := r.Register(desc, echoHandler()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := r.Register(desc, echoHandler())
	var dup *DuplicateToolError
	if !errors.As(err, &dup) || dup.Name != "echo" {
		t.Fatalf("expected DuplicateToolError, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_RegisterRejects(t *testing.T) {
	tests := []struct {
		name    string
		desc    models.ToolDescriptor
		handler Handler
		want    error
	}{
		{"empty name", models.ToolDescriptor{}, echoHandler(), ErrInvalidDescriptor},
		{"nil handler", models.ToolDescriptor{Name: "x"}, nil, ErrInvalidDescriptor},
		{"malformed schema", models.ToolDescriptor{Name: "x", Parameters: json.RawMessage(`{"type":`)}, echoHandler(), ErrInvalidSchema},
		{"bad schema keyword", models.ToolDescriptor{Name: "x", Parameters: json.RawMessage(`{"type":"nope"}`)}, echoHandler(), ErrInvalidSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.desc, tt.handler)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistry_DescriptorsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"write_file", "ask_user", "read_file"} {
		r.MustRegister(models.ToolDescriptor{Name: name}, echoHandler())
	}

	names := r.Names()
	want := []string{"ask_user", "read_file", "write_file"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}

	desc, ok := r.Get("ask_user")
	if !ok || string(desc.Parameters) != `{"type":"object"}` {
		t.Errorf("expected default object schema, got %s", desc.Parameters)
	}
}

type sampleParams struct {
	Path  string `json:"path" jsonschema:"description=File path"`
	Limit int    `json:"limit,omitempty"`
}

func TestSchemaFor(t *testing.T) {
	raw := SchemaFor[sampleParams]()

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("type = %v", schema["type"])
	}
	if _, ok := schema["$schema"]; ok {
		t.Error("expected $schema to be stripped")
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 || required[0] != "path" {
		t.Errorf("required = %v, want [path]", required)
	}

	if err := NewRegistry().Register(models.ToolDescriptor{Name: "s", Parameters: raw}, echoHandler()); err != nil {
		t.Errorf("reflected schema does not compile: %v", err)
	}
}
