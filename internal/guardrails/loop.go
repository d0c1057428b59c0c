package guardrails

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"tagcompliance/internal/cache"
)

// LoopDetector maintains a sliding-window count per (tool_name, args_hash)
// and rejects the (maxIdenticalCalls+1)-th identical call within the
// window, per spec.md §4.10. Counters live in the shared cache, same as
// BudgetTracker.
type LoopDetector struct {
	cache            *cache.Cache
	maxIdenticalCalls int
	window           time.Duration
}

func NewLoopDetector(c *cache.Cache, maxIdenticalCalls int, window time.Duration) *LoopDetector {
	return &LoopDetector{cache: c, maxIdenticalCalls: maxIdenticalCalls, window: window}
}

// ArgsHash canonicalizes args via JSON marshal and hashes it, so
// (tool_name, args_hash) identifies identical calls regardless of map
// key ordering in the caller's representation.
func ArgsHash(args interface{}) string {
	data, _ := json.Marshal(args)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Check reports whether sessionID has already made more than
// maxIdenticalCalls identical (toolName, argsHash) calls within the
// window. Like BudgetTracker, a rejection does not increment the counter.
func (d *LoopDetector) Check(ctx context.Context, sessionID, toolName, argsHash string) (loopDetected bool, err error) {
	key := "loop:" + sessionID + ":" + toolName + ":" + argsHash

	current, hit := d.cache.Get(ctx, key)
	if hit && parseCount(current) >= d.maxIdenticalCalls {
		return true, nil
	}

	if _, incrErr := d.cache.Incr(ctx, key, d.window); incrErr != nil {
		return false, nil
	}
	return false, nil
}
