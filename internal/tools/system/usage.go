package system

import (
	"context"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// UsageSource reports a session's token consumption.
type UsageSource interface {
	Usage() models.Usage
	Cost() int
}

type usageParams struct{}

func usageDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        SessionUsageTool,
		Description: "Report token usage for the current session.",
		Parameters:  tools.SchemaFor[usageParams](),
	}
}

func sessionUsage(ctx context.Context, store *extensions.Store, params tools.Params) (models.ToolResult, error) {
	source, err := extensions.MustGetAs[UsageSource](store, UsageExtension)
	if err != nil {
		return models.Failure("usage unavailable: " + err.Error()), nil
	}
	u := source.Usage()
	content := fmt.Sprintf("Input tokens: %d\nOutput tokens: %d\nTotal tokens: %d\nHistory size (estimated tokens): %d",
		u.Input, u.Output, u.Total, source.Cost())
	return models.Success(content).WithDetail(u), nil
}
