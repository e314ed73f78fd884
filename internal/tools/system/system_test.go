package system

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type fakeUsage struct{}

func (fakeUsage) Usage() models.Usage { return models.Usage{Input: 10, Output: 5, Total: 15} }
func (fakeUsage) Cost() int           { return 42 }

func newEngine(t *testing.T) *tools.Engine {
	t.Helper()
	registry := tools.NewRegistry()
	if err := Register(registry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return tools.NewEngine(registry, nil)
}

func TestSystemTools(t *testing.T) {
	engine := newEngine(t)
	store := extensions.NewStore()
	store.Put(UsageExtension, UsageSource(fakeUsage{}))

	tests := []struct {
		name     string
		tool     string
		args     string
		wantOK   bool
		wantFlag string
		contains string
	}{
		{"finish with summary", FinishTaskTool, `{"summary":"done it"}`, true, models.FlagTaskComplete, "done it"},
		{"finish default", FinishTaskTool, `{}`, true, models.FlagTaskComplete, "Task complete."},
		{"ask", AskUserTool, `{"question":"Which file?"}`, true, models.FlagSuspend, "Which file?"},
		{"ask blank", AskUserTool, `{"question":"   "}`, false, "", "blank"},
		{"ask missing", AskUserTool, `{}`, false, "", "question"},
		{"notify", NotifyUserTool, `{"message":"halfway"}`, true, "", "notified"},
		{"notify bad level", NotifyUserTool, `{"message":"x","level":"panic"}`, false, "", "level"},
		{"usage", SessionUsageTool, `{}`, true, "", "Total tokens: 15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Execute(context.Background(), tt.tool, json.RawMessage(tt.args), store)
			if result.OK != tt.wantOK {
				t.Fatalf("OK = %v, want %v (%+v)", result.OK, tt.wantOK, result)
			}
			if result.SystemFlag != tt.wantFlag {
				t.Errorf("SystemFlag = %q, want %q", result.SystemFlag, tt.wantFlag)
			}
			if !strings.Contains(result.Text(), tt.contains) {
				t.Errorf("Text() = %q, want %q", result.Text(), tt.contains)
			}
		})
	}
}

func TestSessionUsage_MissingSource(t *testing.T) {
	engine := newEngine(t)
	result := engine.Execute(context.Background(), SessionUsageTool, nil, extensions.NewStore())
	if result.OK || !strings.Contains(result.Error, "usage unavailable") {
		t.Errorf("result = %+v", result)
	}
}

func TestNotifyDetail(t *testing.T) {
	engine := newEngine(t)
	result := engine.Execute(context.Background(), NotifyUserTool, json.RawMessage(`{"message":"m","level":"warning"}`), nil)
	n, ok := result.Detail.(Notification)
	if !ok || n.Level != "warning" || n.Message != "m" {
		t.Errorf("Detail = %#v", result.Detail)
	}
}
