// Package schemas provides JSON Schema validation for documents the workflow
// persists, using the schemas embedded in the top-level schemas package.
package schemas

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/hiring-workflow/schemas"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Schema is a compiled schema ready for repeated validation.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Load compiles an embedded schema by file name.
func Load(name string) (*Schema, error) {
	data, err := schemas.FS.ReadFile(name)
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "schema file not found", Cause: err}
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "schema validation failed during load", Cause: err}
	}
	return &Schema{name: name, schema: compiled}, nil
}

var (
	stageFeedback     = sync.OnceValues(func() (*Schema, error) { return Load(schemas.StageFeedback) })
	feedbackTemplates = sync.OnceValues(func() (*Schema, error) { return Load(schemas.FeedbackTemplates) })
)

// StageFeedback returns the compiled schema for stored stage feedback.
func StageFeedback() (*Schema, error) {
	return stageFeedback()
}

// FeedbackTemplates returns the compiled schema for the feedback template catalog.
func FeedbackTemplates() (*Schema, error) {
	return feedbackTemplates()
}

// Validate validates raw JSON against the schema.
func (s *Schema) Validate(doc []byte) error {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateValue validates a Go value, as it would marshal to JSON, against the schema.
func (s *Schema) ValidateValue(v any) error {
	return s.validate(gojsonschema.NewGoLoader(v))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) error {
	result, err := s.schema.Validate(loader)
	if err != nil {
		// The document itself could not be decoded.
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
