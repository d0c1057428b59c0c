package catalog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagcompliance/internal/models"
)

func TestLoad(t *testing.T) {
	content := `[
		{"type": "ec2:instance", "category": "cost-generating", "cost_service_name": "AmazonEC2"},
		{"type": "vpc:subnet", "category": "free", "cost_service_name": ""},
		{"type": "s3:bucket", "category": "global", "cost_service_name": "AmazonS3"}
	]`

	tempFile, err := os.CreateTemp("", "catalog-*.json")
	require.NoError(t, err)
	defer os.Remove(tempFile.Name())

	_, err = tempFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tempFile.Close())

	c, err := Load(tempFile.Name())
	require.NoError(t, err)

	assert.Equal(t, models.CategoryCostGenerating, c.CategoryOf("ec2:instance"))
	assert.Equal(t, "AmazonEC2", c.CostServiceNameOf("ec2:instance"))
	assert.Equal(t, models.CategoryFree, c.CategoryOf("vpc:subnet"))
	assert.Equal(t, models.ResourceCategory(""), c.CategoryOf("nonexistent:type"))
}

func TestLoadRejectsUnknownCategory(t *testing.T) {
	content := `[{"type": "ec2:instance", "category": "bogus"}]`

	tempFile, err := os.CreateTemp("", "catalog-*.json")
	require.NoError(t, err)
	defer os.Remove(tempFile.Name())

	_, err = tempFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tempFile.Close())

	_, err = Load(tempFile.Name())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestAllApplicableTypesExcludesUnattributableAndGlobal(t *testing.T) {
	c := LoadDefault()
	types := c.AllApplicableTypes()

	assert.Contains(t, types, "ec2:instance")
	assert.Contains(t, types, "vpc:subnet")
	assert.NotContains(t, types, "logs:log-group")
	assert.NotContains(t, types, "s3:bucket")
}

func TestIsGlobal(t *testing.T) {
	assert.True(t, IsGlobal("s3:bucket"))
	assert.True(t, IsGlobal("iam:role"))
	assert.False(t, IsGlobal("ec2:instance"))
}
