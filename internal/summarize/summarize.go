// Package summarize condenses compressed history prefixes with a language
// model.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/haasonsaas/agentcore/internal/retry"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// SystemPrompt instructs the model to reply with the summary only.
const SystemPrompt = "You summarize conversations. Return only the summary text."

// maxToolResultChars bounds tool output quoted into the prompt.
const maxToolResultChars = 200

// ErrEmptySummary is returned when the model replies without text.
var ErrEmptySummary = errors.New("model returned an empty summary")

// Model is the subset of the agent's model endpoint the summarizer needs.
type Model interface {
	Send(ctx context.Context, history []models.Message, tools []models.ToolDescriptor) (models.ModelResponse, error)
}

// LLM implements history.Summarizer by prompting a model.
type LLM struct {
	model   Model
	retrier *retry.Retrier
}

// Option configures an LLM summarizer.
type Option func(*LLM)

// WithRetry sends summary requests under r. Without it each summary is
// a single attempt.
func WithRetry(r *retry.Retrier) Option {
	return func(s *LLM) {
		s.retrier = r
	}
}

// New returns a summarizer backed by model.
func New(model Model, opts ...Option) *LLM {
	s := &LLM{model: model}
	for _, opt := range opts {
		opt(s)
	}
	if s.retrier == nil {
		s.retrier = retry.New(retry.Config{MaxAttempts: 1})
	}
	return s
}

// Summarize asks the model for a summary of msgs no longer than targetLen
// characters. Longer replies are truncated.
func (s *LLM) Summarize(ctx context.Context, msgs []models.Message, targetLen int) (models.Message, error) {
	if s == nil || s.model == nil {
		return models.Message{}, errors.New("summarizer has no model")
	}
	prompt := []models.Message{
		models.NewSystemMessage(SystemPrompt),
		models.NewUserMessage(BuildPrompt(msgs, targetLen)),
	}

	resp, outcome := retry.DoWithValue(ctx, s.retrier, func(ctx context.Context) (models.ModelResponse, error) {
		return s.model.Send(ctx, prompt, nil)
	})
	if outcome.Err != nil {
		return models.Message{}, fmt.Errorf("summarize %d messages after %d attempts: %w", len(msgs), outcome.Attempts, outcome.Err)
	}
	if resp.Message.HasToolCalls() {
		return models.Message{}, fmt.Errorf("unexpected tool call during summarization: %s", resp.Message.ToolCalls[0].Name)
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return models.Message{}, ErrEmptySummary
	}
	return models.NewSummaryMessage(Truncate(content, targetLen)), nil
}

// BuildPrompt creates the prompt for summarizing messages. A leading
// summary from an earlier compression is presented as prior context so
// its facts carry forward.
func BuildPrompt(msgs []models.Message, maxLength int) string {
	var sb strings.Builder

	sb.WriteString("Please summarize the following conversation concisely. ")
	if maxLength > 0 {
		fmt.Fprintf(&sb, "Keep the summary under %d characters. ", maxLength)
	}
	sb.WriteString("Focus on:\n")
	sb.WriteString("- Key topics discussed\n")
	sb.WriteString("- Important decisions or conclusions\n")
	sb.WriteString("- Any pending tasks or questions\n")
	sb.WriteString("- Tool executions and their outcomes\n\n")

	if len(msgs) > 0 && msgs[0].Summary {
		sb.WriteString("Summary of earlier conversation:\n")
		sb.WriteString(msgs[0].Content)
		sb.WriteString("\n\n")
		msgs = msgs[1:]
	}

	sb.WriteString("Conversation:\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "[%s]: ", m.Role)
		switch m.Role {
		case models.RoleTool:
			status := "success"
			if isError, _ := m.Metadata["is_error"].(bool); isError {
				status = "error"
			}
			fmt.Fprintf(&sb, "[Tool result from %s (%s): %s]", m.ToolName, status, Truncate(m.Content, maxToolResultChars))
		default:
			sb.WriteString(m.Content)
		}
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&sb, "\n  [Called tool: %s]", tc.Name)
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\nProvide a concise summary:")
	return sb.String()
}

// Truncate shortens s to at most maxLen bytes on a rune boundary, adding an
// ellipsis when it cuts.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	cut := maxLen - len(ellipsis)
	if cut <= 0 {
		return s[:maxLen]
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
