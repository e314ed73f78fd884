package history

import (
	"github.com/haasonsaas/agentcore/pkg/models"
)

// CharsPerToken is the approximate character-to-token ratio for estimation.
const CharsPerToken = 4

// Tokenizer estimates the token cost of a message. It must be
// deterministic for the lifetime of a session.
type Tokenizer interface {
	Count(msg models.Message) int
}

// TokenizerFunc adapts a function to Tokenizer.
type TokenizerFunc func(msg models.Message) int

// Count calls f.
func (f TokenizerFunc) Count(msg models.Message) int {
	return f(msg)
}

// CharTokenizer estimates ~4 characters per token, rounding up.
type CharTokenizer struct{}

// Count estimates the tokens in msg's content and tool calls.
func (CharTokenizer) Count(msg models.Message) int {
	chars := len(msg.Content)
	for _, call := range msg.ToolCalls {
		chars += len(call.Name) + len(call.Arguments)
	}
	return (chars + CharsPerToken - 1) / CharsPerToken
}
