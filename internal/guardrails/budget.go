// Package guardrails implements the per-session budget tracker, loop
// detector, input sanitiser, injection detector, and error sanitiser of
// spec.md §4.10. Guard functions are composed explicitly by the
// dispatcher rather than run as a registered middleware stack — the same
// "reject before proceeding" shape as middleware_/auth.go's ClerkAuth,
// generalized from a fiber.Handler into transport-agnostic functions.
package guardrails

import (
	"context"
	"time"

	"tagcompliance/internal/cache"
)

// BudgetTracker caps the number of tool calls per session. Counters live
// in the shared cache via atomic INCR; there is no local mutable counter.
type BudgetTracker struct {
	cache   *cache.Cache
	maxCalls int
	ttl     time.Duration
}

func NewBudgetTracker(c *cache.Cache, maxCalls int, ttl time.Duration) *BudgetTracker {
	return &BudgetTracker{cache: c, maxCalls: maxCalls, ttl: ttl}
}

// Check reports whether sessionID has budget remaining and, if so,
// consumes one unit of it. Per spec.md §8's invariant, a rejection never
// increments the counter: the current count is read before deciding
// whether to increment.
func (b *BudgetTracker) Check(ctx context.Context, sessionID string) (exhausted bool, used int, limit int, err error) {
	key := "budget:" + sessionID

	current, hit := b.cache.Get(ctx, key)
	if hit {
		n := parseCount(current)
		if n >= b.maxCalls {
			return true, n, b.maxCalls, nil
		}
	}

	n, incrErr := b.cache.Incr(ctx, key, b.ttl)
	if incrErr != nil {
		// Cache failure degrades to "not exhausted" — guardrail state is
		// advisory, not a source of truth that can fail a scan.
		return false, 0, b.maxCalls, nil
	}
	return false, int(n), b.maxCalls, nil
}

func parseCount(raw []byte) int {
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
