package agent

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/history"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Model is a language model endpoint. Send receives the full request
// history, system prompt first, and the descriptors of the callable tools.
type Model interface {
	Send(ctx context.Context, history []models.Message, tools []models.ToolDescriptor) (models.ModelResponse, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, history []models.Message, tools []models.ToolDescriptor) (models.ModelResponse, error)

// Send calls f.
func (f ModelFunc) Send(ctx context.Context, history []models.Message, tools []models.ToolDescriptor) (models.ModelResponse, error) {
	return f(ctx, history, tools)
}

// modelName returns the provider label used in logs and metrics.
func modelName(m Model) string {
	if named, ok := m.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "model"
}

// Sink is the transport a session streams frames to and reads user
// messages from. Read returns io.EOF when the peer is done.
type Sink interface {
	Write(ctx context.Context, frame models.Frame) (int, error)
	Read(ctx context.Context) (models.Message, error)
}

// SnapshotSaver persists session history after each run.
type SnapshotSaver interface {
	Save(ctx context.Context, sessionID string, snap history.Snapshot) error
}
