// Package files provides workspace-scoped file tools. Every path passes
// through a Sandbox before use, and successful mutations are reported
// through an Emitter.
package files

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultMaxReadBytes caps read_file output.
const DefaultMaxReadBytes = 200_000

// Sandbox maps model-supplied paths onto the workspace.
// *workspace.Guard implements it.
type Sandbox interface {
	Resolve(path string) (string, error)
	Rel(abs string) string
	Root() string
}

// Emitter publishes file events.
type Emitter interface {
	Emit(ctx context.Context, payload events.Payload)
}

// BusEmitter publishes to an event bus, tagging events with the session
// ID carried in ctx.
type BusEmitter struct {
	Bus *events.Bus
}

// Emit publishes payload.
func (e BusEmitter) Emit(ctx context.Context, payload events.Payload) {
	e.Bus.Emit(ctx, observability.GetSessionID(ctx), payload)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, events.Payload) {}

// Config configures the file tools.
type Config struct {
	Sandbox      Sandbox
	Emitter      Emitter
	MaxReadBytes int
}

// Register adds read_file, write_file, edit_file, delete_file and
// list_files to registry.
func Register(registry *tools.Registry, cfg Config) error {
	if cfg.Sandbox == nil {
		return fmt.Errorf("file tools require a sandbox")
	}
	if cfg.Emitter == nil {
		cfg.Emitter = nopEmitter{}
	}
	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = DefaultMaxReadBytes
	}

	handlers := []struct {
		desc    models.ToolDescriptor
		handler tools.Handler
	}{
		{readDescriptor(), &readTool{cfg: cfg}},
		{writeDescriptor(), &writeTool{cfg: cfg}},
		{editDescriptor(), &editTool{cfg: cfg}},
		{deleteDescriptor(), &deleteTool{cfg: cfg}},
		{listDescriptor(), &listTool{cfg: cfg}},
	}
	for _, h := range handlers {
		if err := registry.Register(h.desc, h.handler); err != nil {
			return err
		}
	}
	return nil
}

func toolResult(payload any) (models.ToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return models.Failure(fmt.Sprintf("encode result: %v", err)), nil
	}
	return models.Success(string(data)).WithDetail(payload), nil
}

func toolError(message string) (models.ToolResult, error) {
	return models.Failure(message), nil
}
