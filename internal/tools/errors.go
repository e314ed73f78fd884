package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for tool registration and execution.
var (
	// ErrToolNotFound indicates a requested tool doesn't exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments indicates arguments failed schema validation.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrInvalidSchema indicates a descriptor's parameter schema does not compile.
	ErrInvalidSchema = errors.New("invalid tool schema")

	// ErrInvalidDescriptor indicates a descriptor or handler is unusable.
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")

	// ErrToolTimeout indicates a tool execution exceeded its timeout.
	ErrToolTimeout = errors.New("tool execution timed out")

	// ErrToolCanceled indicates the caller canceled the execution.
	ErrToolCanceled = errors.New("tool execution canceled")

	// ErrToolPanic indicates a handler panicked.
	ErrToolPanic = errors.New("tool panicked")
)

// DuplicateToolError is returned when registering a name twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError reports a call to a tool that was never registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

func (e *UnknownToolError) Unwrap() error {
	return ErrToolNotFound
}

// ValidationError describes why arguments were rejected.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("invalid arguments for tool %s", e.Tool)
	}
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArguments
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Tool  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tool %s panicked: %v", e.Tool, e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrToolPanic
}
