package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type recorder struct {
	kinds  []events.Kind
	after  []events.AfterToolCall
	before []events.BeforeToolCall
}

func newRecordingBus() (*events.Bus, *recorder) {
	bus := events.NewBus(nil)
	rec := &recorder{}
	bus.Register(events.KindBeforeToolCall, func(ctx context.Context, e *events.Event) error {
		rec.kinds = append(rec.kinds, e.Kind)
		rec.before = append(rec.before, e.Payload.(events.BeforeToolCall))
		return nil
	})
	bus.Register(events.KindAfterToolCall, func(ctx context.Context, e *events.Event) error {
		rec.kinds = append(rec.kinds, e.Kind)
		rec.after = append(rec.after, e.Payload.(events.AfterToolCall))
		return nil
	})
	return bus, rec
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *recorder) {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(models.ToolDescriptor{Name: "echo", Parameters: echoSchema}, echoHandler())
	r.MustRegister(models.ToolDescriptor{Name: "fail"}, HandlerFunc(func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
		return models.ToolResult{}, errors.New("disk on fire")
	}))
	r.MustRegister(models.ToolDescriptor{Name: "explode"}, HandlerFunc(func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
		panic("kaboom")
	}))
	r.MustRegister(models.ToolDescriptor{Name: "empty"}, HandlerFunc(func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
		return models.ToolResult{}, nil
	}))
	r.MustRegister(models.ToolDescriptor{Name: "slow"}, HandlerFunc(func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
		<-ctx.Done()
		return models.ToolResult{}, ctx.Err()
	}), WithTimeout(20*time.Millisecond))
	r.MustRegister(models.ToolDescriptor{Name: "remember"}, HandlerFunc(func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
		store.Put("seen", true)
		return models.Success("stored"), nil
	}))

	bus, rec := newRecordingBus()
	return NewEngine(r, bus, opts...), rec
}

func TestEngine_ResultsAreNeverAmbiguous(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		tool   string
		args   string
		wantOK bool
	}{
		{"echo", `{"text":"hi"}`, true},
		{"fail", `{}`, false},
		{"explode", `{}`, false},
		{"empty", `{}`, false},
		{"slow", `{}`, false},
		{"remember", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			result := engine.Execute(context.Background(), tt.tool, json.RawMessage(tt.args), nil)
			if result.OK != tt.wantOK {
				t.Fatalf("OK = %v, want %v (%+v)", result.OK, tt.wantOK, result)
			}
			if result.OK && result.Content == "" {
				t.Error("ok result with empty content")
			}
			if !result.OK && result.Error == "" {
				t.Error("failed result with empty error")
			}
			if result.OK != (result.Error == "") {
				t.Errorf("OK/Error invariant violated: %+v", result)
			}
		})
	}
}

func TestEngine_UnknownTool(t *testing.T) {
	engine, rec := newTestEngine(t)

	result := engine.Execute(context.Background(), "does_not_exist", json.RawMessage(`{}`), nil)

	if result.OK {
		t.Fatal("expected failure for unknown tool")
	}
	if !strings.Contains(result.Error, "unknown tool") {
		t.Errorf("Error = %q", result.Error)
	}
	if len(rec.kinds) != 0 {
		t.Errorf("unknown tool published events: %v", rec.kinds)
	}
}

func TestEngine_ValidationFailure(t *testing.T) {
	engine, rec := newTestEngine(t)

	tests := []struct {
		name string
		args string
		want string
	}{
		{"missing required", `{}`, "text"},
		{"wrong type", `{"text": 5}`, "/text"},
		{"extra property", `{"text":"a","x":1}`, "x"},
		{"not json", `{"text":`, "not valid JSON"},
		{"not an object", `"hello"`, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Execute(context.Background(), "echo", json.RawMessage(tt.args), nil)
			if result.OK {
				t.Fatal("expected validation failure")
			}
			if !strings.Contains(result.Error, "invalid arguments for tool echo") || !strings.Contains(result.Error, tt.want) {
				t.Errorf("Error = %q, want mention of %q", result.Error, tt.want)
			}
			var ve *ValidationError
			if err, ok := result.Detail.(error); !ok || !errors.As(err, &ve) {
				t.Errorf("Detail = %#v, want *ValidationError", result.Detail)
			}
		})
	}
	if len(rec.kinds) != 0 {
		t.Errorf("validation failures published events: %v", rec.kinds)
	}
}

func TestEngine_PublishesBeforeAndAfter(t *testing.T) {
	engine, rec := newTestEngine(t)
	store := extensions.NewStore()

	call := models.NewToolCall("remember", json.RawMessage(`{}`))
	result := engine.ExecuteCall(context.Background(), call, store)
	if !result.OK {
		t.Fatalf("unexpected failure: %+v", result)
	}

	if len(rec.kinds) != 2 || rec.kinds[0] != events.KindBeforeToolCall || rec.kinds[1] != events.KindAfterToolCall {
		t.Fatalf("kinds = %v", rec.kinds)
	}
	if rec.before[0].Store != store || rec.after[0].Store != store {
		t.Error("events did not carry the caller's store")
	}
	if rec.after[0].CallID != call.ID || rec.after[0].Result.Content != "stored" {
		t.Errorf("after payload = %+v", rec.after[0])
	}
	if seen, _ := store.Get("seen"); seen != true {
		t.Error("handler did not see the caller's store")
	}
}

func TestEngine_HandlerErrorsAndPanics(t *testing.T) {
	engine, rec := newTestEngine(t)

	result := engine.Execute(context.Background(), "fail", nil, nil)
	if result.Error != "disk on fire" {
		t.Errorf("Error = %q", result.Error)
	}

	result = engine.Execute(context.Background(), "explode", nil, nil)
	if !strings.Contains(result.Error, "panicked: kaboom") {
		t.Errorf("Error = %q", result.Error)
	}
	if len(rec.after) != 2 || rec.after[1].Result.OK {
		t.Errorf("expected failed after events, got %+v", rec.after)
	}
}

func TestEngine_Timeout(t *testing.T) {
	engine, rec := newTestEngine(t)

	result := engine.Execute(context.Background(), "slow", nil, nil)
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("Error = %q, want timeout", result.Error)
	}
	if len(rec.after) != 1 {
		t.Fatalf("expected after event on timeout, got %d", len(rec.after))
	}
}

func TestEngine_CancellationStillPublishesAfter(t *testing.T) {
	engine, rec := newTestEngine(t, WithDefaultTimeout(time.Minute))
	engine.Registry().MustRegister(models.ToolDescriptor{Name: "block"}, HandlerFunc(func(ctx context.Context, store *extensions.Store, params Params) (models.ToolResult, error) {
		<-ctx.Done()
		return models.ToolResult{}, ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	result := engine.Execute(ctx, "block", nil, nil)
	if result.OK || !strings.Contains(result.Error, "canceled") {
		t.Errorf("result = %+v, want canceled failure", result)
	}
	if len(rec.after) != 1 || rec.after[0].Result.OK {
		t.Fatalf("expected one failed after event, got %+v", rec.after)
	}
}

func TestEngine_Metrics(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	engine, _ := newTestEngine(t, WithMetrics(m))

	engine.Execute(context.Background(), "echo", json.RawMessage(`{"text":"a"}`), nil)
	engine.Execute(context.Background(), "fail", nil, nil)

	if got := testutil.ToFloat64(m.ToolExecutions.WithLabelValues("echo", "ok")); got != 1 {
		t.Errorf("echo ok = %v", got)
	}
	if got := testutil.ToFloat64(m.ToolExecutions.WithLabelValues("fail", "error")); got != 1 {
		t.Errorf("fail error = %v", got)
	}
}
