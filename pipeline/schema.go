package pipeline

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// reportSchema is the JSON Schema the written report.json must satisfy.
// Calling automation consumes the report; the schema is the contract.
const reportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "pgopipe pipeline report",
  "type": "object",
  "required": ["target", "started_at", "finished_at", "verdict", "stages"],
  "properties": {
    "target": {"type": "string", "minLength": 1},
    "started_at": {"type": "string"},
    "finished_at": {"type": "string"},
    "verdict": {"enum": ["success", "partial-success", "failure"]},
    "aborted": {"type": "boolean"},
    "abort_stage": {"type": "string"},
    "abort_index": {"type": "integer", "minimum": 0},
    "abort_reason": {"type": "string"},
    "final_binary": {"type": "string"},
    "stages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["stage", "verdict"],
        "properties": {
          "stage": {"type": "string", "minLength": 1},
          "verdict": {
            "enum": [
              "succeeded",
              "succeeded-with-degradation",
              "failed",
              "skipped"
            ]
          },
          "cause": {"type": "string"},
          "diagnostic": {"type": "string"},
          "outcomes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["status"],
              "properties": {
                "status": {
                  "enum": ["ok", "nonzero-exit", "timeout", "not-found", "cancelled"]
                },
                "exit_code": {"type": "integer"},
                "duration_ns": {"type": "integer"},
                "truncated": {"type": "boolean"},
                "error": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "artifacts": {"type": "array"}
  }
}`

var (
	compiledSchema *gojsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func getSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(reportSchema)
		compiledSchema, compileErr = gojsonschema.NewSchema(loader)
	})
	return compiledSchema, compileErr
}

// ValidateReport validates raw report JSON against the report schema. It
// returns a slice of validation error descriptions and an error if schema
// compilation fails.
func ValidateReport(jsonData []byte) ([]string, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling report schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("validating report: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
