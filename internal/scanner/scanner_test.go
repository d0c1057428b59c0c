package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagcompliance/internal/models"
)

// TestAggregateRegionTimeoutScenario reproduces spec.md §8 scenario 2
// verbatim: r1 returns 10/7, r2 times out.
func TestAggregateRegionTimeoutScenario(t *testing.T) {
	resultCh := make(chan regionResult, 3)
	resultCh <- regionResult{region: "r1", result: models.ComplianceResult{TotalResources: 10, CompliantResources: 7}}
	resultCh <- regionResult{region: "r2", err: context.DeadlineExceeded}
	resultCh <- regionResult{region: "global", result: models.ComplianceResult{}}
	close(resultCh)

	agg := aggregate([]string{"r1", "r2"}, resultCh)

	assert.Equal(t, 10, agg.TotalResources)
	assert.Equal(t, 7, agg.CompliantResources)
	assert.Equal(t, 0.7, agg.Score)
	assert.Equal(t, []string{"r1"}, agg.RegionMetadata.SuccessfulRegions)
	require.Len(t, agg.RegionMetadata.FailedRegions, 1)
	assert.Equal(t, "r2", agg.RegionMetadata.FailedRegions[0].Region)
	assert.Equal(t, "timeout", agg.RegionMetadata.FailedRegions[0].Error)
}

func TestAggregateAllRegionsFailYieldsPerfectScoreNotError(t *testing.T) {
	resultCh := make(chan regionResult, 2)
	resultCh <- regionResult{region: "r1", err: errors.New("boom")}
	resultCh <- regionResult{region: "global", result: models.ComplianceResult{}}
	close(resultCh)

	agg := aggregate([]string{"r1"}, resultCh)

	assert.Equal(t, 0, agg.TotalResources)
	assert.Equal(t, 1.0, agg.Score)
	assert.Len(t, agg.RegionMetadata.FailedRegions, 1)
	assert.Empty(t, agg.RegionMetadata.SuccessfulRegions)
}

func TestAggregateTotalsSumAcrossRegionsAndGlobal(t *testing.T) {
	resultCh := make(chan regionResult, 2)
	resultCh <- regionResult{region: "r1", result: models.ComplianceResult{TotalResources: 4, CompliantResources: 4}}
	resultCh <- regionResult{region: "global", result: models.ComplianceResult{TotalResources: 2, CompliantResources: 1}}
	close(resultCh)

	agg := aggregate([]string{"r1"}, resultCh)

	assert.Equal(t, 6, agg.TotalResources)
	assert.Equal(t, agg.TotalResources, agg.RegionBreakdown["r1"].TotalResources+agg.RegionBreakdown["global"].TotalResources)
}
