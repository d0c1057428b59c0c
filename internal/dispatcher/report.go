package dispatcher

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"tagcompliance/internal/models"
)

// encodeResult serializes a scan result for the compliance cache. The
// cache only ever stores bytes; the scan logic itself is cache-agnostic.
func encodeResult(result models.MultiRegionComplianceResult) []byte {
	data, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	return data
}

// decodeCachedResult is the inverse of encodeResult. A corrupt cache entry
// degrades to a zero-value result rather than panicking; the caller treats
// it the same as a fresh-but-empty scan.
func decodeCachedResult(data []byte) models.MultiRegionComplianceResult {
	var result models.MultiRegionComplianceResult
	_ = json.Unmarshal(data, &result)
	return result
}

// renderReport formats a scan result in the requested output format,
// optionally annotated with suggestion text for each violation.
func renderReport(result models.MultiRegionComplianceResult, format string, includeRecommendations bool) interface{} {
	switch format {
	case "csv":
		return renderCSV(result)
	case "markdown":
		return renderMarkdown(result, includeRecommendations)
	default:
		return result
	}
}

func renderCSV(result models.MultiRegionComplianceResult) string {
	var b strings.Builder
	b.WriteString("resource_id,resource_type,region,kind,tag_name,severity,current_value\n")
	for _, v := range result.Violations {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s,%s\n",
			v.ResourceID, v.ResourceType, v.Region, v.Kind, v.TagName, v.Severity, v.CurrentValue)
	}
	return b.String()
}

func renderMarkdown(result models.MultiRegionComplianceResult, includeRecommendations bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Compliance report\n\n")
	fmt.Fprintf(&b, "- Score: %.2f\n", result.Score)
	fmt.Fprintf(&b, "- Total resources: %d\n", result.TotalResources)
	fmt.Fprintf(&b, "- Compliant resources: %d\n", result.CompliantResources)
	fmt.Fprintf(&b, "- Violations: %d\n\n", len(result.Violations))

	if len(result.RegionMetadata.FailedRegions) > 0 {
		b.WriteString("## Failed regions\n\n")
		for _, f := range result.RegionMetadata.FailedRegions {
			fmt.Fprintf(&b, "- %s: %s\n", f.Region, f.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Violations\n\n")
	for _, v := range result.Violations {
		fmt.Fprintf(&b, "- `%s` (%s, %s): %s on `%s`", v.ResourceID, v.ResourceType, v.Region, v.Kind, v.TagName)
		if v.CurrentValue != "" {
			fmt.Fprintf(&b, " = %q", v.CurrentValue)
		}
		b.WriteString("\n")
		if includeRecommendations && len(v.AllowedValues) > 0 {
			fmt.Fprintf(&b, "  - allowed: %s\n", strings.Join(sortedCopy(v.AllowedValues), ", "))
		}
	}
	return b.String()
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
