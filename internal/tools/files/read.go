package files

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type readParams struct {
	FilePath string `json:"file_path" jsonschema:"description=Path to read (relative to workspace)."`
	Offset   int64  `json:"offset,omitempty" jsonschema:"description=Byte offset to start reading from.,minimum=0"`
	MaxBytes int    `json:"max_bytes,omitempty" jsonschema:"description=Maximum bytes to read (capped by tool default).,minimum=0"`
}

func readDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters:  tools.SchemaFor[readParams](),
	}
}

type readTool struct {
	cfg Config
}

func (t *readTool) Execute(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	var input readParams
	if err := params.Decode(&input); err != nil {
		return toolError(err.Error())
	}
	resolved, err := t.cfg.Sandbox.Resolve(input.FilePath)
	if err != nil {
		return toolError(err.Error())
	}

	file, err := os.Open(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("open file: %v", err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return toolError(fmt.Sprintf("stat file: %v", err))
	}
	if info.IsDir() {
		return toolError(fmt.Sprintf("%s is a directory", input.FilePath))
	}
	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return toolError(fmt.Sprintf("seek file: %v", err))
		}
	}

	limit := t.cfg.MaxReadBytes
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}
	buf, err := io.ReadAll(io.LimitReader(file, int64(limit)))
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err))
	}

	return toolResult(map[string]any{
		"path":      t.cfg.Sandbox.Rel(resolved),
		"content":   string(buf),
		"offset":    input.Offset,
		"bytes":     len(buf),
		"truncated": input.Offset+int64(len(buf)) < info.Size(),
	})
}
