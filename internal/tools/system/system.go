// Package system provides the control tools the agent loop understands:
// finishing a task, pausing for user input, progress notices and usage
// reporting.
package system

import (
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Tool names.
const (
	FinishTaskTool   = "finish_task"
	AskUserTool      = "ask_user"
	NotifyUserTool   = "notify_user"
	SessionUsageTool = "session_usage"
)

// UsageExtension is the context store key under which a session exposes
// its UsageSource.
const UsageExtension = "session.usage"

// Register adds the system tools to registry.
func Register(registry *tools.Registry) error {
	handlers := []struct {
		desc    models.ToolDescriptor
		handler tools.Handler
	}{
		{finishDescriptor(), tools.HandlerFunc(finishTask)},
		{askDescriptor(), tools.HandlerFunc(askUser)},
		{notifyDescriptor(), tools.HandlerFunc(notifyUser)},
		{usageDescriptor(), tools.HandlerFunc(sessionUsage)},
	}
	for _, h := range handlers {
		if err := registry.Register(h.desc, h.handler); err != nil {
			return err
		}
	}
	return nil
}
