package system

import (
	"context"
	"strings"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type finishParams struct {
	Summary string `json:"summary,omitempty" jsonschema:"description=Short summary of what was accomplished."`
}

func finishDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        FinishTaskTool,
		Description: "Signal that the current task is complete. Call this once the user's request has been fully handled.",
		Parameters:  tools.SchemaFor[finishParams](),
	}
}

func finishTask(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	summary := strings.TrimSpace(params.String("summary"))
	if summary == "" {
		summary = "Task complete."
	}
	return models.Success(summary).WithFlag(models.FlagTaskComplete), nil
}

type askParams struct {
	Question string `json:"question" jsonschema:"description=The question to ask the user.,minLength=1"`
}

func askDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        AskUserTool,
		Description: "Ask the user a question and pause until they reply.",
		Parameters:  tools.SchemaFor[askParams](),
	}
}

func askUser(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	question := strings.TrimSpace(params.String("question"))
	if question == "" {
		return models.Failure("question must not be blank"), nil
	}
	return models.Success(question).WithFlag(models.FlagSuspend), nil
}

// Notification is the detail attached to notify_user results.
type Notification struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

type notifyParams struct {
	Message string `json:"message" jsonschema:"description=Progress message to show the user.,minLength=1"`
	Level   string `json:"level,omitempty" jsonschema:"enum=info,enum=warning,enum=success"`
}

func notifyDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        NotifyUserTool,
		Description: "Show a progress notice to the user without pausing.",
		Parameters:  tools.SchemaFor[notifyParams](),
	}
}

func notifyUser(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	n := Notification{Message: params.String("message"), Level: params.String("level")}
	if n.Level == "" {
		n.Level = "info"
	}
	return models.Success("User notified.").WithDetail(n), nil
}
