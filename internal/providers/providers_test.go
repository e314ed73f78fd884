package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/internal/retry"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// captureServer serves a fixed reply and records the decoded request body.
func captureServer(t *testing.T, status int, header http.Header, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	captured := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured)
		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func sampleHistory() []models.Message {
	call := models.ToolCall{ID: "toolu_1", Name: "read_file", Arguments: json.RawMessage(`{"file_path":"a.txt"}`)}
	call2 := models.ToolCall{ID: "toolu_2", Name: "list_files", Arguments: json.RawMessage(`{}`)}
	return []models.Message{
		models.NewSystemMessage("You are helpful."),
		models.NewSummaryMessage("Earlier the user said hello."),
		models.NewUserMessage("read a.txt"),
		models.NewAssistantMessage("", call, call2),
		models.NewToolMessage(call, models.Success("contents")),
		models.NewToolMessage(call2, models.Failure("denied")),
	}
}

var sampleTools = []models.ToolDescriptor{{
	Name:        "read_file",
	Description: "Read a file",
	Parameters:  json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string"}},"required":["file_path"]}`),
}}

func TestAnthropic_Send(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, nil, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
		"content": [
			{"type": "text", "text": "Reading it."},
			{"type": "tool_use", "id": "toolu_3", "name": "read_file", "input": {"file_path": "b.txt"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`)

	p, err := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Send(context.Background(), sampleHistory(), sampleTools)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if resp.Message.Content != "Reading it." || len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("unexpected reply: %+v", resp.Message)
	}
	call := resp.Message.ToolCalls[0]
	var args map[string]string
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		t.Fatalf("arguments %s: %v", call.Arguments, err)
	}
	if call.ID != "toolu_3" || call.Name != "read_file" || args["file_path"] != "b.txt" {
		t.Errorf("tool call = %+v (%s)", call, call.Arguments)
	}
	if resp.Usage.Input != 12 || resp.Usage.Output != 7 || resp.Usage.Total != 19 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.StopReason != "tool_use" {
		t.Errorf("StopReason = %q", resp.StopReason)
	}

	req := *captured
	system, _ := req["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("system = %v", req["system"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected user, assistant, merged tool results; got %d messages", len(msgs))
	}
	results := msgs[2].(map[string]any)["content"].([]any)
	if len(results) != 2 {
		t.Errorf("tool results were not merged: %v", results)
	}
	if tools, _ := req["tools"].([]any); len(tools) != 1 {
		t.Errorf("tools = %v", req["tools"])
	}
}

func TestAnthropic_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		header        http.Header
		body          string
		wantReason    Reason
		wantPermanent bool
		wantHint      time.Duration
	}{
		{
			name:       "rate limited with retry-after",
			status:     http.StatusTooManyRequests,
			header:     http.Header{"Retry-After": []string{"7"}},
			body:       `{"type":"error","error":{"type":"rate_limit_error","message":"Rate limited"}}`,
			wantReason: ReasonRateLimit,
			wantHint:   7 * time.Second,
		},
		{
			name:       "overloaded",
			status:     529,
			body:       `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantReason: ReasonServerError,
		},
		{
			name:          "bad key",
			status:        http.StatusUnauthorized,
			body:          `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantReason:    ReasonAuth,
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := captureServer(t, tt.status, tt.header, tt.body)
			p, err := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL})
			if err != nil {
				t.Fatal(err)
			}
			_, err = p.Send(context.Background(), []models.Message{models.NewUserMessage("hi")}, nil)
			if err == nil {
				t.Fatal("expected error")
			}

			providerErr, ok := GetProviderError(err)
			if !ok {
				t.Fatalf("err = %T %v, want *ProviderError", err, err)
			}
			if providerErr.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", providerErr.Reason, tt.wantReason)
			}
			if retry.IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v", retry.IsPermanent(err), tt.wantPermanent)
			}
			hint, ok := retry.ParseRetryAfter(err)
			if tt.wantHint > 0 && (!ok || hint != tt.wantHint) {
				t.Errorf("retry hint = %v (%v), want %v; message %q", hint, ok, tt.wantHint, err.Error())
			}
			if tt.wantHint == 0 && ok {
				t.Errorf("unexpected retry hint in %q", err.Error())
			}
		})
	}
}

func TestOpenAI_Send(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, nil, `{
		"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-test",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": "", "tool_calls": [
				{"id": "call_9", "type": "function", "function": {"name": "read_file", "arguments": "{\"file_path\":\"c.txt\"}"}}
			]},
			"finish_reason": "tool_calls"
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`)

	p, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Send(context.Background(), sampleHistory(), sampleTools)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].ID != "call_9" {
		t.Fatalf("unexpected reply: %+v", resp.Message)
	}
	if string(resp.Message.ToolCalls[0].Arguments) != `{"file_path":"c.txt"}` {
		t.Errorf("arguments = %s", resp.Message.ToolCalls[0].Arguments)
	}
	if resp.Usage.Total != 15 || resp.StopReason != "tool_calls" {
		t.Errorf("usage = %+v stop = %q", resp.Usage, resp.StopReason)
	}

	msgs, _ := (*captured)["messages"].([]any)
	// system, user, assistant, tool, tool
	if len(msgs) != 5 {
		t.Fatalf("sent %d messages, want 5", len(msgs))
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first role = %v", role)
	}
}

func TestOpenAI_RateLimitHint(t *testing.T) {
	srv, _ := captureServer(t, http.StatusTooManyRequests, nil,
		`{"error":{"message":"Rate limit reached. Please try again in 20s.","type":"requests","code":"rate_limit_exceeded"}}`)
	p, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Send(context.Background(), []models.Message{models.NewUserMessage("hi")}, nil)

	providerErr, ok := GetProviderError(err)
	if !ok {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if providerErr.Reason != ReasonRateLimit || retry.IsPermanent(err) {
		t.Errorf("reason = %s permanent = %v", providerErr.Reason, retry.IsPermanent(err))
	}
	if hint, ok := retry.ParseRetryAfter(err); !ok || hint != 20*time.Second {
		t.Errorf("hint = %v, %v", hint, ok)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{errors.New("context deadline exceeded"), ReasonTimeout},
		{errors.New("429 Too Many Requests"), ReasonRateLimit},
		{errors.New("invalid api key"), ReasonAuth},
		{errors.New("insufficient quota"), ReasonBilling},
		{errors.New("502 Bad Gateway"), ReasonServerError},
		{errors.New("dial tcp: connection refused"), ReasonNetwork},
		{errors.New("something odd"), ReasonUnknown},
		{&ProviderError{Reason: ReasonContentFilter}, ReasonContentFilter},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%q) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestProviderError_RetryHintText(t *testing.T) {
	err := (&ProviderError{Reason: ReasonRateLimit, Provider: "anthropic", Message: "slow down"}).
		WithRetryAfter(1500 * time.Millisecond)
	if got, want := err.Error(), "[rate_limit] anthropic slow down (retry after 1.5 seconds)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"7", 7 * time.Second},
		{"", 0},
		{"soon", 0},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := parseRetryAfterHeader(h, now); got != tt.want {
			t.Errorf("parseRetryAfterHeader(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		cfg     Config
		want    string
		wantErr bool
	}{
		{Config{Provider: "anthropic", APIKey: "k"}, "anthropic", false},
		{Config{Provider: "OpenAI", APIKey: "k"}, "openai", false},
		{Config{Provider: "anthropic"}, "", true},
		{Config{Provider: "mystery", APIKey: "k"}, "", true},
	}
	for _, tt := range tests {
		p, err := NewFromConfig(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewFromConfig(%+v) err = %v", tt.cfg, err)
			continue
		}
		if err == nil && p.Name() != tt.want {
			t.Errorf("Name() = %q, want %q", p.Name(), tt.want)
		}
	}
}
