package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/sdk"

	"tagcompliance/internal/errkind"
)

// NamingEngine compiles a TagPolicy's naming rules into a Rego bundle and
// evaluates them per tag key/value pair. It is the direct generalization of
// the teacher's opa_.Engine: same New-then-Decision shape, narrowed to one
// read-only decision path instead of a library of enforcement policies.
type NamingEngine struct {
	opa *sdk.OPA
	dir string
}

// regoModule mirrors policygen_.generateRequireTagsPolicy's "sprintf a
// package of allow/violation/msg rules from config" idiom, here compiling
// max-length and case rules instead of a required-tag list. Case checking
// itself is done in Go (regexp has no Rego equivalent worth compiling a
// bundle for) and passed in as a precomputed boolean.
func regoModule() string {
	return `package tagcompliance.naming

default violation = false

violation {
	input.max_key_length > 0
	count(input.key) > input.max_key_length
}

violation {
	input.max_value_length > 0
	count(input.value) > input.max_value_length
}

violation {
	input.case_violation
}
`
}

// NewNamingEngine compiles nr into an OPA bundle under a scratch directory,
// following opa_.Initialize's "write .rego files to a bundle dir, point the
// SDK at file://" bootstrap.
func NewNamingEngine(nr NamingRules) (*NamingEngine, error) {
	dir, err := os.MkdirTemp("", "tagcompliance-naming-*")
	if err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "create naming-rule bundle dir", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "naming.rego"), []byte(regoModule()), 0o644); err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "write naming-rule bundle", err)
	}

	config := []byte(fmt.Sprintf(`{
		"bundles": {
			"tagcompliance": {
				"resource": "file://%s"
			}
		}
	}`, dir))

	opa, err := sdk.New(context.Background(), sdk.Options{Config: config})
	if err != nil {
		return nil, errkind.New(errkind.PolicyValidation, "initialize naming-rule engine", err)
	}

	return &NamingEngine{opa: opa, dir: dir}, nil
}

// Violates evaluates the naming rules against one tag key/value pair.
func (e *NamingEngine) Violates(ctx context.Context, key, value string, nr NamingRules) (bool, error) {
	result, err := e.opa.Decision(ctx, sdk.DecisionOptions{
		Path: "tagcompliance/naming/violation",
		Input: map[string]interface{}{
			"key":             key,
			"value":           value,
			"max_key_length":  nr.MaxKeyLength,
			"max_value_length": nr.MaxValueLength,
			"case_violation":  nr.RequireUpperCamelCaseKeys && !isUpperCamelCase(key),
		},
	})
	if err != nil {
		return false, err
	}
	v, _ := result.Result.(bool)
	return v, nil
}

// isUpperCamelCase reports whether s starts with an uppercase letter and
// contains no separators (spaces, underscores, hyphens).
func isUpperCamelCase(s string) bool {
	if s == "" {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for _, r := range s {
		if r == ' ' || r == '_' || r == '-' {
			return false
		}
	}
	return true
}

// Close releases the OPA engine and its scratch bundle directory.
func (e *NamingEngine) Close() error {
	defer os.RemoveAll(e.dir)
	return e.opa.Close(context.Background())
}
