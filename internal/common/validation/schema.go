// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult mirrors the outcome of a schema check.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const generationRequestSchema = `{
	"type": "object",
	"required": ["city", "population", "demographics"],
	"additionalProperties": false,
	"properties": {
		"city": {"type": "string", "minLength": 1},
		"population": {"type": "integer", "minimum": 1},
		"demographics": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["category", "subcategories"],
				"additionalProperties": false,
				"properties": {
					"category": {"type": "string", "minLength": 1},
					"subcategories": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["name", "percentage"],
							"additionalProperties": false,
							"properties": {
								"name": {"type": "string", "minLength": 1},
								"percentage": {"type": "number", "minimum": 0, "maximum": 100}
							}
						}
					}
				}
			}
		}
	}
}`

const aggregationRequestSchema = `{
	"type": "object",
	"required": ["city", "stimulus_title"],
	"additionalProperties": false,
	"properties": {
		"city": {"type": "string", "minLength": 1},
		"stimulus_title": {"type": "string", "minLength": 1},
		"content": {"type": "string"},
		"possible_responses": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		}
	}
}`

var (
	generationSchema  = gojsonschema.NewStringLoader(generationRequestSchema)
	aggregationSchema = gojsonschema.NewStringLoader(aggregationRequestSchema)
)

// ValidateGenerationRequest checks a weighted generation request body.
func ValidateGenerationRequest(body []byte) (*ValidationResult, error) {
	return validate(generationSchema, body)
}

// ValidateAggregationRequest checks an aggregation request body.
func ValidateAggregationRequest(body []byte) (*ValidationResult, error) {
	return validate(aggregationSchema, body)
}

func validate(schema gojsonschema.JSONLoader, body []byte) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, verr := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   verr.Field(),
			Message: verr.Description(),
		})
	}
	return out, nil
}
