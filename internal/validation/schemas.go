package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names.
const (
	OrderEventSchema    = "order-event"
	BehaviorEventSchema = "behavior-event"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

var schemaFiles = map[string]string{
	OrderEventSchema:    "order-event.json",
	BehaviorEventSchema: "behavior-event.json",
}

// SchemaValidator validates event payloads against JSON schemas.
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// NewEmbeddedSchemaValidator returns a validator loaded with the schemas
// compiled into the binary.
func NewEmbeddedSchemaValidator() (*SchemaValidator, error) {
	sv := NewSchemaValidator()
	if err := sv.LoadSchemaFromFS(embeddedSchemas, "schemas"); err != nil {
		return nil, err
	}
	return sv, nil
}

// LoadSchemaFromFS loads every known schema from schemaDir in fsys.
func (sv *SchemaValidator) LoadSchemaFromFS(fsys fs.FS, schemaDir string) error {
	for name, filename := range schemaFiles {
		schemaPath := path.Join(schemaDir, filename)

		schemaBytes, err := fs.ReadFile(fsys, schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", schemaPath, err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return fmt.Errorf("failed to load schema %s: %w", name, err)
		}

		sv.schemas[name] = schema
	}

	return nil
}

func (sv *SchemaValidator) ValidateOrderEvent(data interface{}) *ValidationResult {
	return sv.validate(OrderEventSchema, data)
}

func (sv *SchemaValidator) ValidateBehaviorEvent(data interface{}) *ValidationResult {
	return sv.validate(BehaviorEventSchema, data)
}

func (sv *SchemaValidator) validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Message: fmt.Sprintf("Schema '%s' not found", schemaName),
				Code:    "SCHEMA_NOT_FOUND",
			}},
		}
	}

	var documentLoader gojsonschema.JSONLoader
	switch v := data.(type) {
	case string:
		documentLoader = gojsonschema.NewStringLoader(v)
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(v)
	default:
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return &ValidationResult{
				Valid: false,
				Errors: []ValidationError{{
					Field:   "data",
					Message: fmt.Sprintf("Failed to marshal data to JSON: %v", err),
					Code:    "JSON_MARSHAL_ERROR",
				}},
			}
		}
		documentLoader = gojsonschema.NewBytesLoader(jsonBytes)
	}

	result, err := schema.Validate(documentLoader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "document",
				Message: fmt.Sprintf("Malformed JSON: %v", err),
				Code:    "MALFORMED_JSON",
			}},
		}
	}

	validationResult := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}
	for _, e := range result.Errors() {
		validationResult.Errors = append(validationResult.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    "VALIDATION_ERROR",
			Value:   e.Value(),
		})
	}

	return validationResult
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err folds an invalid result into a single error.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	if len(vr.Errors) == 0 {
		return fmt.Errorf("validation failed")
	}
	return fmt.Errorf("%w (%d errors)", vr.Errors[0], len(vr.Errors))
}

type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}
