package models

// ModelResponse is one model endpoint reply.
type ModelResponse struct {
	// Message is the assistant message, including any tool call requests.
	Message Message `json:"message"`

	// Usage reports the tokens consumed by the request.
	Usage Usage `json:"usage"`

	// StopReason is the provider's reason for ending the turn.
	StopReason string `json:"stop_reason,omitempty"`

	// Model is the model that served the request.
	Model string `json:"model,omitempty"`
}
