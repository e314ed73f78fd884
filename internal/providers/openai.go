package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultOpenAIModel is used when the config names no model.
const DefaultOpenAIModel = "gpt-4o"

// OpenAI sends requests to the OpenAI chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: maxTokens(cfg.MaxTokens),
	}, nil
}

// Name returns "openai".
func (p *OpenAI) Name() string {
	return "openai"
}

// Send requests one assistant turn.
func (p *OpenAI) Send(ctx context.Context, history []models.Message, tools []models.ToolDescriptor) (models.ModelResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            p.convertMessages(history),
		MaxCompletionTokens: p.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = p.convertTools(tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ModelResponse{}, ctxErr
		}
		return models.ModelResponse{}, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return models.ModelResponse{}, finalize(&ProviderError{
			Reason: ReasonServerError, Provider: p.Name(), Model: p.model,
			Message: "response contained no choices",
		})
	}
	return p.convertResponse(resp), nil
}

// convertMessages maps history to chat messages. The system prompt and
// summaries are merged into one leading system message.
func (p *OpenAI) convertMessages(history []models.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system := systemPrompt(history); system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range history {
		switch msg.Role {
		case models.RoleSystem:
			continue
		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case models.RoleAssistant:
			out := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				})
			}
			result = append(result, out)
		default:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return result
}

func (p *OpenAI) convertTools(tools []models.ToolDescriptor) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func (p *OpenAI) convertResponse(resp openai.ChatCompletionResponse) models.ModelResponse {
	choice := resp.Choices[0]
	calls := make([]models.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		calls = append(calls, models.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	return models.ModelResponse{
		Message: models.NewAssistantMessage(choice.Message.Content, calls...),
		Usage: models.Usage{
			Input:  int64(resp.Usage.PromptTokens),
			Output: int64(resp.Usage.CompletionTokens),
			Total:  int64(resp.Usage.TotalTokens),
		},
		StopReason: string(choice.FinishReason),
		Model:      resp.Model,
	}
}

func (p *OpenAI) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := (&ProviderError{
			Provider: p.Name(),
			Model:    p.model,
			Cause:    err,
			Reason:   ClassifyError(errors.New(apiErr.Message)),
			Message:  apiErr.Message,
		}).WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok && code != "" {
			providerErr.WithCode(code)
		} else if apiErr.Type != "" {
			providerErr.WithCode(apiErr.Type)
		}
		providerErr.WithRetryAfter(parseTryAgainHint(apiErr.Message))
		return finalize(providerErr)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		providerErr := (&ProviderError{
			Provider: p.Name(),
			Model:    p.model,
			Cause:    err,
			Reason:   ReasonUnknown,
			Message:  fmt.Sprintf("request failed: %v", reqErr.Err),
		}).WithStatus(reqErr.HTTPStatusCode)
		return finalize(providerErr)
	}

	return finalize(NewProviderError(p.Name(), p.model, err))
}
