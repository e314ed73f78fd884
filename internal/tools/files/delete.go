package files

import (
	"context"
	"fmt"
	"os"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type deleteParams struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the file to delete (relative to workspace)."`
}

func deleteDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "delete_file",
		Description: "Delete a file from the workspace.",
		Parameters:  tools.SchemaFor[deleteParams](),
	}
}

type deleteTool struct {
	cfg Config
}

func (t *deleteTool) Execute(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	var input deleteParams
	if err := params.Decode(&input); err != nil {
		return toolError(err.Error())
	}
	resolved, err := t.cfg.Sandbox.Resolve(input.FilePath)
	if err != nil {
		return toolError(err.Error())
	}
	if resolved == t.cfg.Sandbox.Root() {
		return toolError("refusing to delete the workspace root")
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("stat file: %v", err))
	}
	if info.IsDir() {
		return toolError(fmt.Sprintf("%s is a directory", input.FilePath))
	}
	if err := os.Remove(resolved); err != nil {
		return toolError(fmt.Sprintf("delete file: %v", err))
	}

	rel := t.cfg.Sandbox.Rel(resolved)
	t.cfg.Emitter.Emit(ctx, events.FileDeleted{Path: rel, Source: "delete_file"})

	return toolResult(map[string]any{
		"path":    rel,
		"deleted": true,
	})
}
