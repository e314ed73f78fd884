// Package tools holds the tool registry and the execution engine that
// validates model-generated arguments, runs handlers and reports every
// outcome as a models.ToolResult.
package tools

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Tool parameter limits to prevent resource exhaustion
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

type entry struct {
	descriptor models.ToolDescriptor
	handler    Handler
	schema     *jsonschema.Schema
	timeout    time.Duration
}

// ToolOption configures a single registration.
type ToolOption func(*entry)

// WithTimeout overrides the engine's per-tool timeout for this tool.
func WithTimeout(d time.Duration) ToolOption {
	return func(e *entry) {
		e.timeout = d
	}
}

// Registry maps tool names to descriptors and handlers. It is populated
// once at process start and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register adds a tool. It fails with *DuplicateToolError when the name is
// taken and with ErrInvalidSchema when the parameter schema doesn't compile.
func (r *Registry) Register(desc models.ToolDescriptor, handler Handler, opts ...ToolOption) error {
	if desc.Name == "" || len(desc.Name) > MaxToolNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidDescriptor, MaxToolNameLength)
	}
	if handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidDescriptor, desc.Name)
	}

	schema, err := compileSchema(desc.Name, desc.Parameters)
	if err != nil {
		return err
	}
	if len(desc.Parameters) == 0 {
		desc.Parameters = emptyObjectSchema
	}

	e := &entry{descriptor: desc, handler: handler, schema: schema}
	for _, opt := range opts {
		opt(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists {
		return &DuplicateToolError{Name: desc.Name}
	}
	r.tools[desc.Name] = e
	return nil
}

// MustRegister is Register that panics on error, for static tool sets.
func (r *Registry) MustRegister(desc models.ToolDescriptor, handler Handler, opts ...ToolOption) {
	if err := r.Register(desc, handler, opts...); err != nil {
		panic(err)
	}
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (models.ToolDescriptor, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return models.ToolDescriptor{}, false
	}
	return e.descriptor, true
}

// Descriptors returns all descriptors sorted by name.
func (r *Registry) Descriptors() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	descs := r.Descriptors()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
