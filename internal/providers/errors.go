package providers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/retry"
)

// Reason categorizes why a provider request failed.
type Reason string

const (
	// ReasonBilling indicates payment/quota issues (HTTP 402)
	ReasonBilling Reason = "billing"

	// ReasonRateLimit indicates rate limiting (HTTP 429)
	ReasonRateLimit Reason = "rate_limit"

	// ReasonAuth indicates authentication failure (HTTP 401, 403)
	ReasonAuth Reason = "auth"

	// ReasonTimeout indicates request timeout
	ReasonTimeout Reason = "timeout"

	// ReasonNetwork indicates a connection-level failure
	ReasonNetwork Reason = "network"

	// ReasonServerError indicates server-side issues (HTTP 5xx)
	ReasonServerError Reason = "server_error"

	// ReasonInvalidRequest indicates client-side issues (HTTP 400)
	ReasonInvalidRequest Reason = "invalid_request"

	// ReasonModelUnavailable indicates the model is not available
	ReasonModelUnavailable Reason = "model_unavailable"

	// ReasonContentFilter indicates content was blocked by safety filters
	ReasonContentFilter Reason = "content_filter"

	// ReasonUnknown indicates an unclassified error
	ReasonUnknown Reason = "unknown"
)

// IsRetryable returns true if the failover reason suggests retrying may succeed.
func (r Reason) IsRetryable() bool {
	switch r {
	case ReasonRateLimit, ReasonTimeout, ReasonNetwork, ReasonServerError:
		return true
	default:
		return false
	}
}

// ProviderError represents a structured error from a model endpoint.
type ProviderError struct {
	// Reason categorizes the error for retry logic
	Reason Reason

	// Provider is the name of the provider (e.g., "anthropic", "openai")
	Provider string

	// Model is the model that was requested
	Model string

	// Status is the HTTP status code, if applicable
	Status int

	// Code is the provider-specific error code
	Code string

	// Message is the human-readable error message
	Message string

	// RequestID is the provider's request ID for debugging
	RequestID string

	// RetryAfter is the server's requested wait before the next attempt.
	RetryAfter time.Duration

	// Cause is the underlying error
	Cause error
}

// Error renders the error. A server retry hint is kept in the text as
// "retry after N seconds" so the retry helper can honor it.
func (e *ProviderError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}

	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("(retry after %s seconds)",
			strconv.FormatFloat(e.RetryAfter.Seconds(), 'f', -1, 64)))
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new ProviderError classified from cause.
func NewProviderError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{
		Provider: provider,
		Model:    model,
		Cause:    cause,
		Reason:   ReasonUnknown,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = ClassifyError(cause)
	}
	return err
}

// WithStatus adds HTTP status to the error and reclassifies if needed.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	if reason := classifyStatusCode(status); reason != ReasonUnknown {
		e.Reason = reason
	}
	return e
}

// WithCode adds a provider-specific error code.
func (e *ProviderError) WithCode(code string) *ProviderError {
	e.Code = code
	if reason := classifyErrorCode(code); reason != ReasonUnknown {
		e.Reason = reason
	}
	return e
}

// WithRetryAfter records the server's retry hint.
func (e *ProviderError) WithRetryAfter(d time.Duration) *ProviderError {
	if d > 0 {
		e.RetryAfter = d
	}
	return e
}

// ClassifyError inspects an error and returns the appropriate Reason.
func ClassifyError(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case containsAny(errStr, "timeout", "deadline exceeded", "etimedout"):
		return ReasonTimeout
	case containsAny(errStr, "rate limit", "rate_limit", "too many requests", "429", "overloaded"):
		return ReasonRateLimit
	case containsAny(errStr, "unauthorized", "invalid api key", "invalid_api_key", "authentication", "401", "403"):
		return ReasonAuth
	case containsAny(errStr, "billing", "payment", "quota", "insufficient", "402"):
		return ReasonBilling
	case containsAny(errStr, "content_filter", "content policy", "safety", "blocked"):
		return ReasonContentFilter
	case containsAny(errStr, "model not found", "model_not_found", "does not exist"):
		return ReasonModelUnavailable
	case containsAny(errStr, "internal server", "server error", "unavailable", "bad gateway", "500", "502", "503", "504", "529"):
		return ReasonServerError
	case containsAny(errStr, "connection reset", "connection refused", "no such host", "unexpected eof", "broken pipe"):
		return ReasonNetwork
	}
	return ReasonUnknown
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// classifyStatusCode returns a Reason based on HTTP status code.
func classifyStatusCode(status int) Reason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ReasonAuth
	case status == http.StatusPaymentRequired:
		return ReasonBilling
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusRequestTimeout:
		return ReasonTimeout
	case status == http.StatusBadRequest:
		return ReasonInvalidRequest
	case status == http.StatusNotFound:
		return ReasonModelUnavailable
	case status >= 500:
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

// classifyErrorCode returns a Reason based on provider-specific error codes.
func classifyErrorCode(code string) Reason {
	switch strings.ToLower(code) {
	case "rate_limit_error", "rate_limit_exceeded":
		return ReasonRateLimit
	case "overloaded_error", "server_error", "internal_error", "api_error":
		return ReasonServerError
	case "authentication_error", "permission_error", "invalid_api_key":
		return ReasonAuth
	case "billing_error", "insufficient_quota":
		return ReasonBilling
	case "model_not_found", "model_not_available", "not_found_error":
		return ReasonModelUnavailable
	case "content_policy_violation", "content_filter":
		return ReasonContentFilter
	case "invalid_request_error":
		return ReasonInvalidRequest
	default:
		return ReasonUnknown
	}
}

// GetProviderError extracts a ProviderError from an error chain.
func GetProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	return ClassifyError(err).IsRetryable()
}

// finalize marks non-retryable provider errors permanent so the agent's
// retry loop gives up immediately.
func finalize(err *ProviderError) error {
	if err.Reason.IsRetryable() {
		return err
	}
	return retry.Permanent(err)
}

// parseRetryAfterHeader reads a Retry-After header in delta-seconds or
// HTTP-date form.
func parseRetryAfterHeader(h http.Header, now time.Time) time.Duration {
	if h == nil {
		return 0
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now).Round(time.Second)
	}
	return 0
}

var tryAgainPattern = regexp.MustCompile(`(?i)try again in (\d+(?:\.\d+)?)\s*(ms|s)`)

// parseTryAgainHint reads hints like "Please try again in 20s" from a
// provider message.
func parseTryAgainHint(msg string) time.Duration {
	m := tryAgainPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if strings.EqualFold(m[2], "ms") {
		return time.Duration(n * float64(time.Millisecond))
	}
	return time.Duration(n * float64(time.Second))
}
