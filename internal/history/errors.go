package history

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMessage is returned when appending a message with an unknown role.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrSummarizerFailed wraps summarizer errors during compression.
	ErrSummarizerFailed = errors.New("summarizer failed")

	// ErrNoSummarizer is returned when compression is needed but no
	// summarizer is configured.
	ErrNoSummarizer = errors.New("no summarizer configured")

	// ErrInvalidSnapshot is returned by Restore for inconsistent snapshots.
	ErrInvalidSnapshot = errors.New("invalid history snapshot")
)

// CompressionIneffectiveError reports a compression pass that could not
// reduce the history's cost. History is left unchanged.
type CompressionIneffectiveError struct {
	CostBefore int
	CostAfter  int
	Eligible   int
	Reason     string
}

func (e *CompressionIneffectiveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("compression ineffective: %s (cost %d, %d eligible messages)", e.Reason, e.CostBefore, e.Eligible)
	}
	return fmt.Sprintf("compression ineffective: cost %d -> %d", e.CostBefore, e.CostAfter)
}
