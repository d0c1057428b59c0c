// Package cost computes per-resource monthly cost using the three-tier
// attribution algorithm of spec.md §4.8, and the cost-attribution gap
// against the policy's cost-attribution tags. Grounded on
// handlers_/ai_costs.go's per-resource cost aggregation shape, generalized
// from token/GPU usage rows to arbitrary cloud resources.
package cost

import (
	"sort"

	"tagcompliance/internal/catalog"
	"tagcompliance/internal/models"
)

// terminalStates are compute states that never accrue compute cost;
// storage costs for a stopped instance are tracked separately by the
// cloud provider and are out of scope here.
var terminalStates = map[string]bool{
	"stopped":      true,
	"stopping":     true,
	"terminated":   true,
	"shutting-down": true,
}

// instanceSizeWeights is the configurable lookup table used to distribute
// a service's remaining cost proportionally across active instances.
// Unknown sizes default to weight 1 (same as the smallest known size).
var instanceSizeWeights = map[string]float64{
	"t3.micro":  1,
	"t3.small":  2,
	"t3.medium": 4,
	"m5.large":  8,
	"m5.xlarge": 16,
	"m5.2xlarge": 32,
}

func weightOf(instanceSize string) float64 {
	if w, ok := instanceSizeWeights[instanceSize]; ok {
		return w
	}
	return 1
}

// Attribute computes a models.ResourceCost per resource in resources,
// given the service's total monthly spend (serviceTotal) and any
// per-resource actuals the cost API already returned (actualByResourceID,
// keyed by ResourceID — typically a name tag or ARN). category decides
// which distribution strategy applies.
//
// Unattributable/free/global categories return nil: serviceTotal is
// never assigned to a resource for these. Callers must still fold
// serviceTotal into AttributionGap's unattributableSpend parameter so
// that spend isn't silently dropped from total_spend.
func Attribute(resources []models.Resource, category models.ResourceCategory, serviceTotal float64, actualByResourceID map[string]float64) []models.ResourceCost {
	if category == models.CategoryUnattributable || category == models.CategoryFree || category == models.CategoryGlobal {
		return nil
	}

	out := make([]models.ResourceCost, 0, len(resources))
	remaining := serviceTotal

	// Tier 1: actuals.
	var needsDistribution []models.Resource
	for _, r := range resources {
		if actual, ok := actualByResourceID[r.ARN]; ok {
			out = append(out, models.ResourceCost{ResourceID: r.ARN, MonthlyCost: actual, CostSource: models.CostSourceActual})
			remaining -= actual
			continue
		}
		needsDistribution = append(needsDistribution, r)
	}
	if remaining < 0 {
		remaining = 0
	}

	if len(needsDistribution) == 0 {
		return out
	}

	hasInstanceSize := anyHasInstanceSize(needsDistribution)
	if !hasInstanceSize {
		// Per-resource-granularity or service-level services: distribute
		// the remainder evenly, per spec.md §4.8.
		out = append(out, distributeEvenly(needsDistribution, remaining)...)
		return out
	}

	// Tier 2/3: compute-type state-aware distribution.
	var active, terminal []models.Resource
	for _, r := range needsDistribution {
		if terminalStates[r.State] {
			terminal = append(terminal, r)
		} else {
			active = append(active, r)
		}
	}
	for _, r := range terminal {
		out = append(out, models.ResourceCost{ResourceID: r.ARN, MonthlyCost: 0, CostSource: models.CostSourceStopped,
			Note: "compute cost only; storage costs are tracked separately"})
	}

	if len(active) > 0 {
		out = append(out, distributeByWeight(active, remaining)...)
		return out
	}

	if remaining > 0 {
		// Tier 3: active pool is empty but spend remains unexplained.
		fallback := distributeEvenly(terminal, remaining)
		for i := range fallback {
			fallback[i].Note = "likely incomplete cost data or non-instance charges such as NAT, EBS"
		}
		return append(tierOnly(out, terminal), fallback...)
	}

	return out
}

// tierOnly strips any entries for resources in terminal from out, so the
// tier-3 fallback can replace their zeroed tier-2 entries.
func tierOnly(out []models.ResourceCost, terminal []models.Resource) []models.ResourceCost {
	terminalIDs := make(map[string]bool, len(terminal))
	for _, r := range terminal {
		terminalIDs[r.ARN] = true
	}
	kept := out[:0]
	for _, c := range out {
		if !terminalIDs[c.ResourceID] {
			kept = append(kept, c)
		}
	}
	return kept
}

func anyHasInstanceSize(resources []models.Resource) bool {
	for _, r := range resources {
		if r.InstanceSize != "" {
			return true
		}
	}
	return false
}

func distributeEvenly(resources []models.Resource, total float64) []models.ResourceCost {
	if len(resources) == 0 {
		return nil
	}
	share := total / float64(len(resources))
	out := make([]models.ResourceCost, 0, len(resources))
	for _, r := range resources {
		out = append(out, models.ResourceCost{ResourceID: r.ARN, MonthlyCost: share, CostSource: models.CostSourceEstimated})
	}
	return out
}

func distributeByWeight(resources []models.Resource, total float64) []models.ResourceCost {
	totalWeight := 0.0
	for _, r := range resources {
		totalWeight += weightOf(r.InstanceSize)
	}
	out := make([]models.ResourceCost, 0, len(resources))
	if totalWeight == 0 {
		return distributeEvenly(resources, total)
	}
	for _, r := range resources {
		share := total * weightOf(r.InstanceSize) / totalWeight
		out = append(out, models.ResourceCost{ResourceID: r.ARN, MonthlyCost: share, CostSource: models.CostSourceEstimated})
	}
	return out
}

// unattributableGroupKey is the synthetic bucket unattributableSpend is
// filed under in GroupedGap, so "partition sum equals total gap" (spec.md
// §4.8) holds even when some service spend never reaches per-resource
// assignment at all.
const unattributableGroupKey = "unattributable_services"

// AttributionGap computes the cost-attribution gap: the portion of total
// spend assigned to resources whose tags do NOT satisfy the policy's
// cost-attribution tag subset (default CostCenter/Owner/Environment).
// groupBy selects how the gap is partitioned (resource type, region, or
// account — callers pass the grouping key per resource). unattributableSpend
// is the sum of cost-series totals for services Attribute() never assigns
// per-resource cost to (category unattributable/free/global); it is added
// to total_spend and surfaced as its own GroupedGap bucket per spec.md
// §4.8's "unattributable services ... surfaced as a distinct bucket".
func AttributionGap(resources []models.Resource, costs []models.ResourceCost, costAttributionTags []string, groupKeyOf func(models.Resource) string, unattributableSpend float64) models.CostAttributionGap {
	costByID := make(map[string]float64, len(costs))
	for _, c := range costs {
		costByID[c.ResourceID] = c.MonthlyCost
	}

	var total, attributable float64
	grouped := make(map[string]float64)

	for _, r := range resources {
		c := costByID[r.ARN]
		total += c
		if hasAllTags(r.Tags, costAttributionTags) {
			attributable += c
		} else {
			grouped[groupKeyOf(r)] += c
		}
	}

	total += unattributableSpend
	if unattributableSpend > 0 {
		grouped[unattributableGroupKey] += unattributableSpend
	}

	gap := total - attributable
	gapPct := 0.0
	if total > 0 {
		gapPct = gap / total
	}

	return models.CostAttributionGap{
		TotalSpend:          total,
		AttributableSpend:   attributable,
		Gap:                 gap,
		GapPct:              gapPct,
		GroupedGap:          grouped,
		UnattributableSpend: unattributableSpend,
	}
}

func hasAllTags(tags map[string]string, required []string) bool {
	for _, t := range required {
		if _, ok := tags[t]; !ok {
			return false
		}
	}
	return true
}

// CostServiceNameFor resolves the cost-service name a resource type bills
// under, delegating to the resource-type catalog.
func CostServiceNameFor(c *catalog.Catalog, resourceType string) string {
	return c.CostServiceNameOf(resourceType)
}

// sortedGroupKeys returns grouped's keys sorted, used by callers that need
// deterministic report ordering.
func sortedGroupKeys(grouped map[string]float64) []string {
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
