package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultAnthropicModel is used when the config names no model.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// Anthropic sends requests to the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates an Anthropic provider. The SDK's own retries are
// disabled; the agent loop retries with its configured policy.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens(cfg.MaxTokens),
	}, nil
}

// Name returns "anthropic".
func (p *Anthropic) Name() string {
	return "anthropic"
}

// Send requests one assistant turn.
func (p *Anthropic) Send(ctx context.Context, history []models.Message, tools []models.ToolDescriptor) (models.ModelResponse, error) {
	messages, err := p.convertMessages(history)
	if err != nil {
		return models.ModelResponse{}, finalize(&ProviderError{
			Reason: ReasonInvalidRequest, Provider: p.Name(), Model: p.model,
			Message: err.Error(), Cause: err,
		})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens),
	}
	if system := systemPrompt(history); system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if len(tools) > 0 {
		converted, err := p.convertTools(tools)
		if err != nil {
			return models.ModelResponse{}, finalize(&ProviderError{
				Reason: ReasonInvalidRequest, Provider: p.Name(), Model: p.model,
				Message: err.Error(), Cause: err,
			})
		}
		params.Tools = converted
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ModelResponse{}, ctxErr
		}
		return models.ModelResponse{}, p.wrapError(err)
	}
	return p.convertResponse(msg), nil
}

// convertMessages maps history to Anthropic messages. System messages go
// to the system prompt; consecutive tool results share one user message.
func (p *Anthropic) convertMessages(history []models.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			result = append(result, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range history {
		switch msg.Role {
		case models.RoleSystem:
			continue
		case models.RoleTool:
			isError, _ := msg.Metadata["is_error"].(bool)
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isError))
			continue
		}
		flush()

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, call := range msg.ToolCalls {
			input := map[string]any{}
			if len(call.Arguments) > 0 {
				if err := json.Unmarshal(call.Arguments, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input for %s: %w", call.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	flush()

	return result, nil
}

func (p *Anthropic) convertTools(tools []models.ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(tool.Parameters) > 0 {
			if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
			}
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}

func (p *Anthropic) convertResponse(msg *anthropic.Message) models.ModelResponse {
	var text []string
	var calls []models.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			args := json.RawMessage(block.Input)
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, models.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}

	reply := models.NewAssistantMessage(strings.Join(text, "\n"), calls...)
	return models.ModelResponse{
		Message: reply,
		Usage: models.Usage{
			Input:  msg.Usage.InputTokens,
			Output: msg.Usage.OutputTokens,
			Total:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
		StopReason: string(msg.StopReason),
		Model:      string(msg.Model),
	}
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (p *Anthropic) wrapError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return finalize(NewProviderError(p.Name(), p.model, err))
	}

	providerErr := (&ProviderError{
		Provider:  p.Name(),
		Model:     p.model,
		Cause:     err,
		Reason:    ReasonUnknown,
		RequestID: apiErr.RequestID,
		Message:   "anthropic request failed",
	}).WithStatus(apiErr.StatusCode)

	if raw := apiErr.RawJSON(); raw != "" {
		var payload anthropicErrorPayload
		if json.Unmarshal([]byte(raw), &payload) == nil {
			if payload.Error.Message != "" {
				providerErr.Message = payload.Error.Message
			}
			if payload.Error.Type != "" {
				providerErr.WithCode(payload.Error.Type)
			}
			if payload.RequestID != "" {
				providerErr.RequestID = payload.RequestID
			}
		}
	}
	if apiErr.Response != nil {
		providerErr.WithRetryAfter(parseRetryAfterHeader(apiErr.Response.Header, time.Now()))
	}
	return finalize(providerErr)
}
