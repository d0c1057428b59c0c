package dispatcher

import (
	"context"

	"tagcompliance/internal/audit"
	"tagcompliance/internal/dispatcher/schema"
	"tagcompliance/internal/guardrails"
)

// NewForTest builds a Dispatcher wired only to a stub get_tagging_policy
// handler, for transport-level tests that exercise framing and guard
// behavior without a cloud-backed Service.
func NewForTest(schemas *schema.Registry, auditStore *audit.Store) *Dispatcher {
	d := &Dispatcher{
		schemas:         schemas,
		handlers:        make(map[string]Handler, 1),
		audit:           auditStore,
		bounds:          guardrails.DefaultBounds,
		sanitizeEnabled: true,
	}
	d.handlers[schema.GetTaggingPolicy] = func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"version": "v1"}, nil
	}
	return d
}
