package bundle

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema is the JSON Schema every bundled workflow file must
// satisfy before it is normalized. It intentionally allows unknown fields:
// exports from n8n carry read-only fields that the loader strips.
const definitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "nodes", "connections"],
	"properties": {
		"name": {
			"type": "string",
			"minLength": 1
		},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "type"],
				"properties": {
					"id":   {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"parameters":  {"type": "object"},
					"credentials": {"type": "object"}
				}
			}
		},
		"connections": {
			"type": "object"
		},
		"settings": {
			"type": "object"
		},
		"dependencies": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(definitionSchema)

// validateDocument checks a raw workflow document against the definition
// schema and returns one error message per violation.
func validateDocument(raw []byte) ([]string, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to run schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return violations, nil
}
