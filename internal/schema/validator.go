package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed todo.schema.yaml
var todoSchemaYAML []byte

// SchemaError reports a DSL document that does not match the ToDoDSL schema
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Validator handles JSON schema validation
type Validator struct {
	dslSchema *jsonschema.Schema
}

// NewValidator creates a validator from the embedded ToDoDSL schema
func NewValidator() (*Validator, error) {
	dslSchema, err := compileSchema(todoSchemaYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load DSL schema: %w", err)
	}
	return &Validator{dslSchema: dslSchema}, nil
}

// ValidateDSL validates a decoded DSL document against the schema
func (v *Validator) ValidateDSL(data interface{}) error {
	if v.dslSchema == nil {
		return &SchemaError{Err: fmt.Errorf("DSL schema not loaded")}
	}
	if err := v.dslSchema.Validate(data); err != nil {
		return &SchemaError{Err: err}
	}
	return nil
}

// compileSchema compiles a schema document (JSON or YAML)
func compileSchema(data []byte) (*jsonschema.Schema, error) {
	// Parse YAML to interface{} (supports both YAML and JSON)
	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	// Convert to JSON for schema compiler
	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schema, err := jsonschema.CompileString("todo.schema.json", string(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return schema, nil
}
