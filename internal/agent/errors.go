package agent

import (
	"errors"
	"fmt"
)

// Common sentinel errors for agent operations
var (
	// ErrMaxIterations indicates the loop exceeded its iteration limit
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrNoModel indicates no model endpoint is configured
	ErrNoModel = errors.New("no model configured")

	// ErrSessionBusy indicates a run is already in progress on the session
	ErrSessionBusy = errors.New("session is already running")

	// ErrInvalidMessage indicates a run was started without user content
	ErrInvalidMessage = errors.New("invalid user message")
)

// LoopError represents an error that occurred during the loop execution
// with context about which phase and iteration the error occurred in.
type LoopError struct {
	// Phase is the loop phase where the error occurred
	Phase LoopPhase

	// Iteration is the loop iteration where the error occurred
	Iteration int

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("loop error at %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loop error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop error at %s (iteration %d)", e.Phase, e.Iteration)
}

// Unwrap returns the underlying error.
func (e *LoopError) Unwrap() error {
	return e.Cause
}

// LoopPhase represents a distinct phase in the loop lifecycle.
type LoopPhase string

const (
	// PhaseInit is the initialization phase
	PhaseInit LoopPhase = "init"

	// PhaseModel is the model request phase
	PhaseModel LoopPhase = "model"

	// PhaseExecuteTools is the tool execution phase
	PhaseExecuteTools LoopPhase = "execute_tools"

	// PhaseHistory is the history append phase
	PhaseHistory LoopPhase = "history"
)

// IsModelError reports whether err ended a run in the model phase, which
// means retries against the endpoint were exhausted.
func IsModelError(err error) bool {
	var loopErr *LoopError
	return errors.As(err, &loopErr) && loopErr.Phase == PhaseModel
}
