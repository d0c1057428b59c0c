// Package cache wraps a Redis-compatible shared backend behind a small
// get/set/invalidate surface with deterministic, content-addressed keys.
// The teacher has no cache layer of its own; this is enrichment grounded
// on jordigilh-kubernaut's go-redis/v9 + miniredis/v2 pairing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin wrapper over redis.Client. All failures degrade to a
// permanent miss rather than propagating — per spec.md §4.5, a cache
// failure is never allowed to fail a scan.
type Cache struct {
	rdb *redis.Client
}

// New connects to addr with the given password. The connection is lazy;
// redis-go only dials on first command, so construction never blocks.
func New(addr, password string) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})}
}

// NewFromClient wraps an existing *redis.Client, used by tests against
// miniredis.
func NewFromClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get returns the raw bytes stored at key, and whether it was a hit.
// Any backend error, or a value that fails to round-trip, is treated as a
// miss and logged — never returned to the caller as an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache get %s: %v (treating as miss)", key, err)
		}
		return nil, false
	}
	return val, true
}

// Set writes value at key with ttl. Failures are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("cache set %s: %v (ignored)", key, err)
	}
}

// Invalidate deletes every key with the given prefix, used for explicit
// refresh requests.
func (c *Cache) Invalidate(ctx context.Context, prefix string) {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache invalidate scan %s: %v (ignored)", prefix, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache invalidate del %s: %v (ignored)", prefix, err)
	}
}

// Incr atomically increments the counter at key, creating it with the
// given ttl if absent. Session guardrail counters use this so there is
// never a locally-held mutable counter, per spec.md §5.
func (c *Cache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		c.rdb.Expire(ctx, key, ttl)
	}
	return n, nil
}

// ComplianceKey derives the deterministic cache key for a compliance query.
// Per spec.md §4.5, the canonical JSON includes cost_region, the sorted
// resource-type list, filters sorted by key, severity, the sorted
// effective region set, and the policy version — so the key is invariant
// under reordering of any of those.
func ComplianceKey(costRegion string, resourceTypes []string, filters map[string]string, severity string, regions []string, policyVersion string) string {
	sortedTypes := append([]string(nil), resourceTypes...)
	sort.Strings(sortedTypes)

	sortedRegions := append([]string(nil), regions...)
	sort.Strings(sortedRegions)

	filterKeys := make([]string, 0, len(filters))
	for k := range filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)
	orderedFilters := make([][2]string, 0, len(filterKeys))
	for _, k := range filterKeys {
		orderedFilters = append(orderedFilters, [2]string{k, filters[k]})
	}

	canonical := struct {
		CostRegion    string      `json:"cost_region"`
		ResourceTypes []string    `json:"resource_types"`
		Filters       [][2]string `json:"filters"`
		Severity      string      `json:"severity"`
		Regions       []string    `json:"regions"`
		PolicyVersion string      `json:"policy_version"`
	}{
		CostRegion:    costRegion,
		ResourceTypes: sortedTypes,
		Filters:       orderedFilters,
		Severity:      severity,
		Regions:       sortedRegions,
		PolicyVersion: policyVersion,
	}

	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return "compliance:" + hex.EncodeToString(sum[:])
}
