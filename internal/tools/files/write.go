package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type writeParams struct {
	FilePath string `json:"file_path" jsonschema:"description=Path to write (relative to workspace)."`
	Content  string `json:"content" jsonschema:"description=File contents to write."`
	Append   bool   `json:"append,omitempty" jsonschema:"description=Append instead of overwrite."`
}

func writeDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "write_file",
		Description: "Write content to a file in the workspace (overwrites by default).",
		Parameters:  tools.SchemaFor[writeParams](),
	}
}

type writeTool struct {
	cfg Config
}

func (t *writeTool) Execute(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	var input writeParams
	if err := params.Decode(&input); err != nil {
		return toolError(err.Error())
	}
	resolved, err := t.cfg.Sandbox.Resolve(input.FilePath)
	if err != nil {
		return toolError(err.Error())
	}

	existed, err := fileExists(resolved)
	if err != nil {
		return toolError(err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return toolError(fmt.Sprintf("create directory: %v", err))
	}

	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return toolError(fmt.Sprintf("open file: %v", err))
	}
	n, err := file.WriteString(input.Content)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return toolError(fmt.Sprintf("write file: %v", err))
	}

	rel := t.cfg.Sandbox.Rel(resolved)
	size := int64(n)
	if info, err := os.Stat(resolved); err == nil {
		size = info.Size()
	}
	if existed {
		t.cfg.Emitter.Emit(ctx, events.FileUpdated{Path: rel, Size: size, Source: "write_file"})
	} else {
		t.cfg.Emitter.Emit(ctx, events.FileCreated{Path: rel, Size: size, Source: "write_file"})
	}

	return toolResult(map[string]any{
		"path":          rel,
		"bytes_written": n,
		"append":        input.Append,
		"created":       !existed,
	})
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return true, fmt.Errorf("%s is a directory", path)
		}
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat file: %w", err)
	}
}
