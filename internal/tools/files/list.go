package files

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

const maxListEntries = 1000

type listParams struct {
	Path      string `json:"path,omitempty" jsonschema:"description=Directory to list (relative to workspace). Defaults to the root."`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"description=Descend into subdirectories."`
}

type listEntry struct {
	Path  string `json:"path"`
	Dir   bool   `json:"dir,omitempty"`
	Bytes int64  `json:"bytes,omitempty"`
}

func listDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "list_files",
		Description: "List files in a workspace directory.",
		Parameters:  tools.SchemaFor[listParams](),
	}
}

type listTool struct {
	cfg Config
}

func (t *listTool) Execute(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	var input listParams
	if err := params.Decode(&input); err != nil {
		return toolError(err.Error())
	}
	dir := input.Path
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	resolved, err := t.cfg.Sandbox.Resolve(dir)
	if err != nil {
		return toolError(err.Error())
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("stat directory: %v", err))
	}
	if !info.IsDir() {
		return toolError(fmt.Sprintf("%s is not a directory", dir))
	}

	var entries []listEntry
	truncated := false
	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == resolved {
			return nil
		}
		if len(entries) >= maxListEntries {
			truncated = true
			return filepath.SkipAll
		}
		entry := listEntry{Path: t.cfg.Sandbox.Rel(path), Dir: d.IsDir()}
		if !d.IsDir() {
			if fi, err := d.Info(); err == nil {
				entry.Bytes = fi.Size()
			}
		}
		entries = append(entries, entry)
		if d.IsDir() && !input.Recursive {
			return filepath.SkipDir
		}
		return nil
	})
	if walkErr != nil {
		return toolError(fmt.Sprintf("list directory: %v", walkErr))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return toolResult(map[string]any{
		"path":      t.cfg.Sandbox.Rel(resolved),
		"entries":   entries,
		"truncated": truncated,
	})
}
