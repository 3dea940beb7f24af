package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSpecSchemaViolation indicates a raw spec document failed JSON Schema
// validation before decoding.
var ErrSpecSchemaViolation = errors.New("spec document violates schema")

// specSchema is the JSON Schema for incoming workflow spec documents.
// Malformed records are rejected at the boundary rather than downstream.
var specSchema = map[string]any{
	"type":                 "object",
	"required":             []any{"nodes"},
	"additionalProperties": false,
	"properties": map[string]any{
		"nodes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "type"},
				"properties": map[string]any{
					"id":    map[string]any{"type": "string", "minLength": 1},
					"type":  map[string]any{"type": "string", "enum": nodeTypeEnum()},
					"label": map[string]any{"type": "string"},
					"config": map[string]any{
						"type": "object",
					},
					"position": map[string]any{
						"type":     "object",
						"required": []any{"x", "y"},
						"properties": map[string]any{
							"x": map[string]any{"type": "number"},
							"y": map[string]any{"type": "number"},
						},
					},
				},
			},
		},
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"source", "target"},
				"properties": map[string]any{
					"source":    map[string]any{"type": "string", "minLength": 1},
					"target":    map[string]any{"type": "string", "minLength": 1},
					"label":     map[string]any{"type": "string"},
					"condition": map[string]any{"type": "string"},
				},
			},
		},
	},
}

func nodeTypeEnum() []any {
	values := make([]any, 0, len(KnownNodeTypes))
	for _, nodeType := range KnownNodeTypes {
		values = append(values, string(nodeType))
	}

	return values
}

// ValidateSpecDocument validates a raw, still-undecoded spec document
// against the spec schema. It catches shape errors (wrong types, unknown
// node types, missing ids) before the document reaches the store.
func ValidateSpecDocument(document map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(specSchema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate spec document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		details = append(details, resultErr.String())
	}

	return fmt.Errorf("%w: %s", ErrSpecSchemaViolation, strings.Join(details, "; "))
}
