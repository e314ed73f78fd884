package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// SchemaFor reflects a parameter schema from the struct T. Field names
// follow json tags; fields without omitempty are required.
func SchemaFor[T any]() json.RawMessage {
	r := &invopop.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	schema := r.Reflect(&zero)
	schema.Version = ""
	data, err := json.Marshal(schema)
	if err != nil {
		return emptyObjectSchema
	}
	return data
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = emptyObjectSchema
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := "tool://" + name + "/parameters.json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, name, err)
	}
	return schema, nil
}

// validationProblems flattens a schema validation error into one line per
// failing location.
func validationProblems(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var problems []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			problems = append(problems, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	if len(problems) == 0 {
		problems = append(problems, strings.TrimSpace(ve.Message))
	}
	return problems
}
