package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagcompliance/internal/models"
)

func sampleResult() models.MultiRegionComplianceResult {
	return models.MultiRegionComplianceResult{
		ComplianceResult: models.ComplianceResult{
			Score:              0.75,
			TotalResources:     4,
			CompliantResources: 3,
			Violations: []models.Violation{
				{
					ResourceID:    "i-1",
					ResourceType:  "ec2:instance",
					Region:        "us-east-1",
					Kind:          models.ViolationKind("missing"),
					TagName:       "CostCenter",
					Severity:      models.Severity("error"),
					AllowedValues: []string{"eng", "ops"},
				},
			},
		},
		RegionMetadata: models.RegionMetadata{
			FailedRegions: []models.RegionFailure{{Region: "eu-west-1", Error: "throttled"}},
		},
	}
}

func TestEncodeDecodeCachedResultRoundTrips(t *testing.T) {
	result := sampleResult()
	data := encodeResult(result)
	require.NotNil(t, data)

	decoded := decodeCachedResult(data)
	assert.Equal(t, result.Score, decoded.Score)
	assert.Equal(t, result.TotalResources, decoded.TotalResources)
	require.Len(t, decoded.Violations, 1)
	assert.Equal(t, "i-1", decoded.Violations[0].ResourceID)
}

func TestDecodeCachedResultOnCorruptDataDegradesToZeroValue(t *testing.T) {
	decoded := decodeCachedResult([]byte("not json"))
	assert.Equal(t, models.MultiRegionComplianceResult{}, decoded)
}

func TestRenderReportDefaultsToStructResult(t *testing.T) {
	result := sampleResult()
	rendered := renderReport(result, "json", false)
	out, ok := rendered.(models.MultiRegionComplianceResult)
	require.True(t, ok)
	assert.Equal(t, result.Score, out.Score)
}

func TestRenderCSVIncludesHeaderAndOneRowPerViolation(t *testing.T) {
	csv := renderCSV(sampleResult())
	assert.Contains(t, csv, "resource_id,resource_type,region,kind,tag_name,severity,current_value")
	assert.Contains(t, csv, "i-1,ec2:instance,us-east-1,missing,CostCenter,error,")
}

func TestRenderMarkdownIncludesScoreAndFailedRegions(t *testing.T) {
	md := renderMarkdown(sampleResult(), true)
	assert.Contains(t, md, "Score: 0.75")
	assert.Contains(t, md, "## Failed regions")
	assert.Contains(t, md, "eu-west-1: throttled")
	assert.Contains(t, md, "allowed: eng, ops")
}

func TestRenderMarkdownOmitsRecommendationsWhenDisabled(t *testing.T) {
	md := renderMarkdown(sampleResult(), false)
	assert.NotContains(t, md, "allowed:")
}

func TestSortedCopyDoesNotMutateInput(t *testing.T) {
	values := []string{"ops", "eng"}
	sorted := sortedCopy(values)
	assert.Equal(t, []string{"eng", "ops"}, sorted)
	assert.Equal(t, []string{"ops", "eng"}, values)
}
