// Package providers adapts hosted model endpoints to the agent's model
// interface.
//
// Each adapter sends the whole history in one non-streaming request and
// returns the assistant reply with its tool call requests and token usage.
// Failures are returned as *ProviderError; non-retryable ones are wrapped
// with retry.Permanent so the agent loop does not retry them.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Provider is a model endpoint.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	Send(ctx context.Context, history []models.Message, tools []models.ToolDescriptor) (models.ModelResponse, error)
}

// DefaultMaxTokens bounds the reply length when the config leaves it unset.
const DefaultMaxTokens = 4096

// Config selects and configures a provider.
type Config struct {
	// Provider is "anthropic" or "openai".
	Provider string `yaml:"provider" json:"provider" jsonschema:"enum=anthropic,enum=openai"`

	// APIKey authenticates requests.
	APIKey string `yaml:"api_key" json:"api_key,omitempty"`

	// BaseURL overrides the provider's API endpoint.
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`

	// Model is the model identifier.
	Model string `yaml:"model" json:"model,omitempty"`

	// MaxTokens bounds the reply length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens,omitempty"`

	// HTTPClient replaces the default HTTP client.
	HTTPClient *http.Client `yaml:"-" json:"-"`
}

// NewFromConfig builds the provider named by cfg.Provider.
func NewFromConfig(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic", "":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// systemPrompt joins the content of every system message, including
// history summaries, in order.
func systemPrompt(history []models.Message) string {
	var parts []string
	for _, msg := range history {
		if msg.Role == models.RoleSystem && strings.TrimSpace(msg.Content) != "" {
			if msg.Summary {
				parts = append(parts, "Summary of earlier conversation:\n"+msg.Content)
				continue
			}
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func maxTokens(n int) int {
	if n <= 0 {
		return DefaultMaxTokens
	}
	return n
}
