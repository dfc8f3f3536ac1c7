package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
)

// Request body schemas. Validation runs on the decoded JSON before the
// body is bound into typed request structs, so schema violations surface
// as one aggregated INVALID_PARAMETER error instead of a bind failure.

var systemsSchema = map[string]interface{}{
	"type": "array",
	"items": map[string]interface{}{
		"type": "string",
		"enum": []string{"snomed", "loinc", "rxnorm", "all"},
	},
}

var mapRequestSchema = map[string]interface{}{
	"type":                 "object",
	"required":             []string{"term"},
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"term":    map[string]interface{}{"type": "string", "minLength": 1},
		"systems": systemsSchema,
		"context": map[string]interface{}{"type": "string"},
		"fuzzy_threshold": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"max_results": map[string]interface{}{
			"type":    "integer",
			"minimum": 1,
		},
	},
}

var batchRequestSchema = map[string]interface{}{
	"type":                 "object",
	"required":             []string{"terms"},
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"terms": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]interface{}{"type": "string"},
		},
		"systems": systemsSchema,
		"context": map[string]interface{}{"type": "string"},
		"fuzzy_threshold": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"max_results": map[string]interface{}{
			"type":    "integer",
			"minimum": 1,
		},
	},
}

// validateAgainstSchema checks a decoded body against a schema map and
// folds all violations into a single caller error.
func validateAgainstSchema(body map[string]interface{}, schema map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.NewInvalidParameterError(fmt.Sprintf("request validation failed: %v", err))
	}

	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return errors.NewInvalidParameterError(strings.Join(msgs, "; "))
	}

	return nil
}
