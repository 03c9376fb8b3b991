package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// pipelineSchemaJSON is the JSON Schema for the pipeline document.
// Embedded as a constant to avoid filesystem dependencies.
const pipelineSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://veritas.dev/schemas/pipeline.json",
  "type": "object",
  "required": ["version", "phases"],
  "properties": {
    "version": { "type": "string", "minLength": 1 },
    "global_flags": {
      "type": "object",
      "properties": {
        "fan_out_enabled": { "type": "boolean" },
        "max_parallel": { "type": "integer", "minimum": 1 },
        "execution_mode": { "type": "string" }
      },
      "additionalProperties": false
    },
    "phases": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/phase" }
    },
    "synthesis": { "$ref": "#/$defs/synthesis" },
    "metadata": { "type": "object" }
  },
  "additionalProperties": false,
  "$defs": {
    "phase": {
      "type": "object",
      "required": ["id", "order", "executor", "method"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "order": { "type": "integer", "minimum": 0 },
        "executor": { "type": "string", "minLength": 1 },
        "method": { "type": "string", "minLength": 1 },
        "enabled_if": { "type": "string" },
        "inputs": {
          "type": "array",
          "items": { "$ref": "#/$defs/binding" }
        },
        "output_key": { "type": "string" },
        "timeout_ms": { "type": "integer", "minimum": 0 },
        "optional": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "binding": {
      "type": "object",
      "required": ["param"],
      "properties": {
        "param": { "type": "string", "minLength": 1 },
        "path": { "type": "string" },
        "default": {},
        "engine": {
          "type": "string",
          "enum": ["cel", "expr", "jq"]
        },
        "expression": { "type": "string" }
      },
      "additionalProperties": false
    },
    "synthesis": {
      "type": "object",
      "properties": {
        "primary_source": { "type": "string" },
        "conclusion_sources": {
          "type": "array",
          "items": { "type": "string" }
        },
        "fallback": { "type": "object" },
        "fallback_confidence": { "type": "number" }
      },
      "additionalProperties": false
    }
  }
}`

// DocumentValidator validates raw pipeline documents against the embedded
// JSON Schema (Draft 2020-12) before decoding. Safe for concurrent use.
type DocumentValidator struct {
	compiled *jsonschema.Schema
}

// NewDocumentValidator compiles the embedded pipeline schema.
func NewDocumentValidator() (*DocumentValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(pipelineSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal pipeline schema: %w", err)
	}
	if err := c.AddResource("https://veritas.dev/schemas/pipeline.json", doc); err != nil {
		return nil, fmt.Errorf("add pipeline schema resource: %w", err)
	}
	compiled, err := c.Compile("https://veritas.dev/schemas/pipeline.json")
	if err != nil {
		return nil, fmt.Errorf("compile pipeline schema: %w", err)
	}

	return &DocumentValidator{compiled: compiled}, nil
}

// ValidateDocument checks raw JSON bytes against the pipeline schema.
func (v *DocumentValidator) ValidateDocument(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return schema.NewError(schema.ErrCodeConfig, "pipeline document is not valid JSON").
			WithCause(err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeConfig,
			"pipeline document rejected by schema: %s", err.Error()).
			WithCause(err)
	}
	return nil
}

// ParseDocument validates and decodes a raw pipeline document, then runs
// semantic validation. It is the one entry point callers should use to turn
// bytes into a trusted PipelineConfig.
func (v *DocumentValidator) ParseDocument(data []byte, lookup ExecutorLookup, engines *expressions.Set) (*schema.PipelineConfig, error) {
	if err := v.ValidateDocument(data); err != nil {
		return nil, err
	}

	var cfg schema.PipelineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "decode pipeline document").
			WithCause(err)
	}

	if result := Validate(&cfg, lookup, engines); !result.Valid() {
		return nil, result.ToError()
	}
	return &cfg, nil
}
