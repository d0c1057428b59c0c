package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterRegionsIntersectsInOrder(t *testing.T) {
	discovered := []string{"us-east-1", "us-west-2", "eu-west-1"}

	out := FilterRegions(discovered, nil, nil)
	assert.Equal(t, discovered, out)

	out = FilterRegions(discovered, []string{"us-west-2", "eu-west-1"}, nil)
	assert.Equal(t, []string{"us-west-2", "eu-west-1"}, out)

	out = FilterRegions(discovered, []string{"us-west-2", "eu-west-1"}, []string{"eu-west-1"})
	assert.Equal(t, []string{"eu-west-1"}, out)
}

func TestFilterRegionsEmptyAllowListMeansAll(t *testing.T) {
	discovered := []string{"us-east-1", "us-west-2"}
	out := FilterRegions(discovered, nil, nil)
	assert.Equal(t, discovered, out)
}

func TestFilterRegionsQueryFilterNarrowsFurther(t *testing.T) {
	discovered := []string{"us-east-1", "us-west-2", "eu-west-1"}
	out := FilterRegions(discovered, nil, []string{"us-east-1"})
	assert.Equal(t, []string{"us-east-1"}, out)
}
