package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvFallsBackToDefaultWhenUnset(t *testing.T) {
	t.Setenv("TAGCOMPLIANCE_TEST_UNSET", "")
	assert.Equal(t, "fallback", getEnv("TAGCOMPLIANCE_TEST_UNSET", "fallback"))
}

func TestGetEnvBoolParsesValidAndInvalidInput(t *testing.T) {
	t.Setenv("TAGCOMPLIANCE_TEST_BOOL", "true")
	assert.True(t, getEnvBool("TAGCOMPLIANCE_TEST_BOOL", false))

	t.Setenv("TAGCOMPLIANCE_TEST_BOOL", "not-a-bool")
	assert.False(t, getEnvBool("TAGCOMPLIANCE_TEST_BOOL", false))
}

func TestGetEnvIntFallsBackOnParseError(t *testing.T) {
	t.Setenv("TAGCOMPLIANCE_TEST_INT", "nope")
	assert.Equal(t, 7, getEnvInt("TAGCOMPLIANCE_TEST_INT", 7))
}

func TestClampIntBoundsValue(t *testing.T) {
	assert.Equal(t, 1, clampInt(-5, 1, 20))
	assert.Equal(t, 20, clampInt(100, 1, 20))
	assert.Equal(t, 10, clampInt(10, 1, 20))
}

func TestClampDurationBoundsValue(t *testing.T) {
	assert.Equal(t, 10*time.Second, clampDuration(1*time.Second, 10*time.Second, 300*time.Second))
	assert.Equal(t, 300*time.Second, clampDuration(1000*time.Second, 10*time.Second, 300*time.Second))
}

func TestSplitNonEmptyIgnoresBlankSegments(t *testing.T) {
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, splitNonEmpty("us-east-1,,us-west-2,"))
	assert.Nil(t, splitNonEmpty(""))
}

func TestLoadAppliesDocumentedDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "us-east-1", cfg.CostRegion)
	assert.False(t, cfg.BudgetTrackingEnabled)
	assert.False(t, cfg.LoopDetectionEnabled)
	assert.Equal(t, "", cfg.SharedSecret)
	assert.Equal(t, 5, cfg.MaxConcurrentRegions)
}
