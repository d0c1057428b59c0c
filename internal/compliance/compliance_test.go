package compliance

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagcompliance/internal/models"
	"tagcompliance/internal/policy"
)

func loadTestPolicy(t *testing.T, content string) *policy.TagPolicy {
	t.Helper()
	tempFile, err := os.CreateTemp("", "policy-*.json")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tempFile.Name()) })
	_, err = tempFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tempFile.Close())

	store, err := policy.Load(tempFile.Name())
	require.NoError(t, err)
	return store.Current()
}

// TestCostCenterScenario reproduces spec.md §8 scenario 1 verbatim.
func TestCostCenterScenario(t *testing.T) {
	p := loadTestPolicy(t, `{
		"version": "1",
		"required_tags": [
			{"name": "CostCenter", "allowed_values": ["Engineering", "Marketing"], "applies_to": ["compute:instance"]}
		]
	}`)

	resources := []models.Resource{
		{ARN: "r1", Type: "compute:instance", Tags: map[string]string{"CostCenter": "Engineering"}},
		{ARN: "r2", Type: "compute:instance", Tags: map[string]string{"CostCenter": "eng"}},
	}

	svc := New(nil)
	result := svc.Validate(context.Background(), p, resources, models.SeverityFilterAll)

	assert.Equal(t, 2, result.TotalResources)
	assert.Equal(t, 1, result.CompliantResources)
	assert.Equal(t, 0.5, result.Score)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ViolationInvalidValue, result.Violations[0].Kind)
	assert.Equal(t, "eng", result.Violations[0].CurrentValue)
	assert.Equal(t, []string{"Engineering", "Marketing"}, result.Violations[0].AllowedValues)
}

func TestMissingRequiredTag(t *testing.T) {
	p := loadTestPolicy(t, `{
		"version": "1",
		"required_tags": [{"name": "Owner"}]
	}`)

	resources := []models.Resource{{ARN: "r1", Type: "ec2:instance", Tags: map[string]string{}}}

	svc := New(nil)
	result := svc.Validate(context.Background(), p, resources, models.SeverityFilterAll)

	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ViolationMissingRequiredTag, result.Violations[0].Kind)
	assert.Equal(t, models.SeverityError, result.Violations[0].Severity)
}

func TestRegexViolation(t *testing.T) {
	p := loadTestPolicy(t, `{
		"version": "1",
		"required_tags": [{"name": "Environment", "regex": "^(prod|staging|dev)$"}]
	}`)

	resources := []models.Resource{{ARN: "r1", Type: "ec2:instance", Tags: map[string]string{"Environment": "PROD"}}}

	svc := New(nil)
	result := svc.Validate(context.Background(), p, resources, models.SeverityFilterAll)

	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ViolationInvalidFormat, result.Violations[0].Kind)
}

func TestZeroResourcesScoresPerfect(t *testing.T) {
	p := loadTestPolicy(t, `{"version": "1"}`)

	svc := New(nil)
	result := svc.Validate(context.Background(), p, nil, models.SeverityFilterAll)

	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, 0, result.TotalResources)
	assert.Empty(t, result.Violations)
}

func TestAppliesToEmptyMeansAllTypes(t *testing.T) {
	p := loadTestPolicy(t, `{
		"version": "1",
		"required_tags": [{"name": "Owner"}]
	}`)

	resources := []models.Resource{
		{ARN: "r1", Type: "s3:bucket", Tags: map[string]string{}},
		{ARN: "r2", Type: "ec2:instance", Tags: map[string]string{}},
	}

	svc := New(nil)
	result := svc.Validate(context.Background(), p, resources, models.SeverityFilterAll)
	assert.Len(t, result.Violations, 2)
}

func TestSeverityFilterErrorsOnlyDoesNotChangeScore(t *testing.T) {
	p := loadTestPolicy(t, `{
		"version": "1",
		"required_tags": [{"name": "Owner"}],
		"naming_rules": {"enabled": false}
	}`)

	resources := []models.Resource{{ARN: "r1", Type: "ec2:instance", Tags: map[string]string{"Owner": "team"}}}

	svc := New(nil)
	result := svc.Validate(context.Background(), p, resources, models.SeverityFilterErrorsOnly)
	assert.Equal(t, 1.0, result.Score)
	assert.Empty(t, result.Violations)
}

func TestViolationsSortedBySeverityThenResourceID(t *testing.T) {
	p := loadTestPolicy(t, `{
		"version": "1",
		"required_tags": [{"name": "Owner"}, {"name": "CostCenter", "allowed_values": ["Engineering"]}]
	}`)

	resources := []models.Resource{
		{ARN: "b", Type: "ec2:instance", Tags: map[string]string{"Owner": "x", "CostCenter": "nope"}},
		{ARN: "a", Type: "ec2:instance", Tags: map[string]string{}},
	}

	svc := New(nil)
	result := svc.Validate(context.Background(), p, resources, models.SeverityFilterAll)

	require.Len(t, result.Violations, 3)
	for _, v := range result.Violations {
		assert.Equal(t, models.SeverityError, v.Severity)
	}
	assert.Equal(t, "a", result.Violations[0].ResourceID)
}
