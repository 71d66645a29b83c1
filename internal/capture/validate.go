package capture

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed clip.schema.json
var clipSchemaJSON string

// Validator checks spool drops against the embedded clip schema before they
// are allowed anywhere near the history store.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(clipSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing embedded clip schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("clip.schema.json", doc); err != nil {
		return nil, fmt.Errorf("registering clip schema: %w", err)
	}
	schema, err := compiler.Compile("clip.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling clip schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks one raw drop payload.
func (v *Validator) Validate(payload []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("parsing drop payload: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("drop payload rejected: %w", err)
	}
	return nil
}
