// Package schema holds the compiled JSON-schema argument validators for
// the fixed tool surface of spec.md §4.12/§6. Schemas are Go map literals
// compiled once at startup via gojsonschema, not loaded from disk, so a
// malformed schema fails the process immediately rather than at first call.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Tool names, exported so the dispatcher and transports share one source
// of truth for the fixed surface.
const (
	CheckTagCompliance       = "check_tag_compliance"
	FindUntaggedResources    = "find_untagged_resources"
	ValidateResourceTags     = "validate_resource_tags"
	GetCostAttributionGap    = "get_cost_attribution_gap"
	SuggestTags              = "suggest_tags"
	GetTaggingPolicy         = "get_tagging_policy"
	GenerateComplianceReport = "generate_compliance_report"
	GetViolationHistory      = "get_violation_history"
)

// stringArrayEnumFields lists, per tool, the argument fields that are a
// string enum but must tolerate a caller over-wrapping the value in a
// single-element array (spec.md §4.12 step 3, scenario 5).
var stringArrayEnumFields = map[string][]string{
	CheckTagCompliance: {"severity"},
}

// raw is the literal JSON-schema document for each tool, expressed as Go
// values so gojsonschema.NewGoLoader can compile it directly.
var raw = map[string]map[string]interface{}{
	CheckTagCompliance: {
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"resource_types"},
		"properties": map[string]interface{}{
			"resource_types": map[string]interface{}{
				"type": "array", "items": map[string]interface{}{"type": "string"},
				"minItems": 1, "maxItems": 50, "uniqueItems": true,
			},
			"filters": map[string]interface{}{
				"type": "object", "additionalProperties": map[string]interface{}{"type": "string"},
			},
			"severity": map[string]interface{}{
				"type": "string", "enum": []interface{}{"errors_only", "warnings_only", "all"},
			},
			"store_snapshot": map[string]interface{}{"type": "boolean"},
			"force_refresh":  map[string]interface{}{"type": "boolean"},
		},
	},
	FindUntaggedResources: {
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"resource_types"},
		"properties": map[string]interface{}{
			"resource_types": map[string]interface{}{
				"type": "array", "items": map[string]interface{}{"type": "string"},
				"minItems": 1, "maxItems": 50, "uniqueItems": true,
			},
			"regions": map[string]interface{}{
				"type": "array", "items": map[string]interface{}{"type": "string"}, "maxItems": 50,
			},
			"min_cost_threshold": map[string]interface{}{"type": "number", "minimum": 0},
		},
	},
	ValidateResourceTags: {
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"resource_arns"},
		"properties": map[string]interface{}{
			"resource_arns": map[string]interface{}{
				"type": "array", "items": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 2048},
				"minItems": 1, "maxItems": 100, "uniqueItems": true,
			},
		},
	},
	GetCostAttributionGap: {
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"time_period"},
		"properties": map[string]interface{}{
			"time_period": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 64},
			"grouping": map[string]interface{}{
				"type": "string", "enum": []interface{}{"by_resource_type", "by_region", "none"},
			},
		},
	},
	SuggestTags: {
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"resource_arn"},
		"properties": map[string]interface{}{
			"resource_arn": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 2048},
		},
	},
	GetTaggingPolicy: {
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]interface{}{},
	},
	GenerateComplianceReport: {
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"format"},
		"properties": map[string]interface{}{
			"format":                  map[string]interface{}{"type": "string", "enum": []interface{}{"json", "csv", "markdown"}},
			"include_recommendations": map[string]interface{}{"type": "boolean"},
		},
	},
	GetViolationHistory: {
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"days_back", "group_by"},
		"properties": map[string]interface{}{
			"days_back": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 365},
			"group_by": map[string]interface{}{
				"type": "string", "enum": []interface{}{"day", "week", "month"},
			},
		},
	},
}

// Registry is the set of compiled schemas, keyed by tool name.
type Registry struct {
	schemas map[string]*gojsonschema.Schema
}

// Compile builds every tool's schema once. Called at startup; a malformed
// schema is a programmer error and fails the process immediately.
func Compile() (*Registry, error) {
	r := &Registry{schemas: make(map[string]*gojsonschema.Schema, len(raw))}
	for name, doc := range raw {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", name, err)
		}
		r.schemas[name] = s
	}
	return r, nil
}

// Known reports whether name is a registered tool.
func (r *Registry) Known(name string) bool {
	_, ok := r.schemas[name]
	return ok
}

// Validate unwraps single-element string-array enum fields, then validates
// args against name's compiled schema. Returns the (possibly rewritten)
// args and the first validation error message, if any.
func (r *Registry) Validate(name string, args map[string]interface{}) (map[string]interface{}, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	args = unwrapSingleElementEnumArrays(name, args)

	result, err := s.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		return nil, fmt.Errorf("%s", errs[0].String())
	}
	return args, nil
}

// unwrapSingleElementEnumArrays handles the client habit of over-wrapping a
// scalar enum value in a one-element array (spec.md §4.12 step 3).
func unwrapSingleElementEnumArrays(name string, args map[string]interface{}) map[string]interface{} {
	fields, ok := stringArrayEnumFields[name]
	if !ok {
		return args
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, field := range fields {
		if arr, ok := out[field].([]interface{}); ok && len(arr) == 1 {
			if s, ok := arr[0].(string); ok {
				out[field] = s
			}
		}
	}
	return out
}
