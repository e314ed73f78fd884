package extensions

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrExtensionNotFound is returned when a required extension is absent.
	ErrExtensionNotFound = errors.New("extension not found")

	// ErrNilFactory is returned when GetOrCreate is given no factory.
	ErrNilFactory = errors.New("nil extension factory")
)

// ExtensionTypeError reports a stored value of an unexpected type.
type ExtensionTypeError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *ExtensionTypeError) Error() string {
	return fmt.Sprintf("extension %q: expected %s, got %s", e.Name, e.Expected, e.Actual)
}

func newTypeError[T any](name string, actual any) *ExtensionTypeError {
	return &ExtensionTypeError{
		Name:     name,
		Expected: reflect.TypeFor[T]().String(),
		Actual:   fmt.Sprintf("%T", actual),
	}
}
