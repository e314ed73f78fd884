package files

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type textEdit struct {
	OldText    string `json:"old_text" jsonschema:"description=Text to replace.,minLength=1"`
	NewText    string `json:"new_text" jsonschema:"description=Replacement text."`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema:"description=Replace all occurrences."`
}

type editParams struct {
	FilePath string     `json:"file_path" jsonschema:"description=Path to edit (relative to workspace)."`
	Edits    []textEdit `json:"edits" jsonschema:"minItems=1"`
}

func editDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "edit_file",
		Description: "Apply one or more find/replace edits to a file in the workspace.",
		Parameters:  tools.SchemaFor[editParams](),
	}
}

type editTool struct {
	cfg Config
}

func (t *editTool) Execute(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	var input editParams
	if err := params.Decode(&input); err != nil {
		return toolError(err.Error())
	}
	resolved, err := t.cfg.Sandbox.Resolve(input.FilePath)
	if err != nil {
		return toolError(err.Error())
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err))
	}

	content := string(data)
	replacements := 0
	for i, edit := range input.Edits {
		if !strings.Contains(content, edit.OldText) {
			return toolError(fmt.Sprintf("edit %d: old_text not found", i+1))
		}
		if edit.ReplaceAll {
			replacements += strings.Count(content, edit.OldText)
			content = strings.ReplaceAll(content, edit.OldText, edit.NewText)
		} else {
			content = strings.Replace(content, edit.OldText, edit.NewText, 1)
			replacements++
		}
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return toolError(fmt.Sprintf("write file: %v", err))
	}

	rel := t.cfg.Sandbox.Rel(resolved)
	t.cfg.Emitter.Emit(ctx, events.FileUpdated{Path: rel, Size: int64(len(content)), Source: "edit_file"})

	return toolResult(map[string]any{
		"path":         rel,
		"replacements": replacements,
	})
}
