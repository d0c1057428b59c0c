package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagcompliance/internal/models"
)

func TestParseTimePeriodCurrentMonthStartsOnTheFirst(t *testing.T) {
	start, end, err := parseTimePeriod("current_month")
	require.NoError(t, err)
	assert.Equal(t, 1, start.Day())
	assert.True(t, end.After(start))
}

func TestParseTimePeriodDefaultsToCurrentMonthOnEmptyString(t *testing.T) {
	start, _, err := parseTimePeriod("")
	require.NoError(t, err)
	assert.Equal(t, 1, start.Day())
}

func TestParseTimePeriodLastMonthEndsAtFirstOfThisMonth(t *testing.T) {
	start, end, err := parseTimePeriod("last_month")
	require.NoError(t, err)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, 1, end.Day())
	assert.True(t, start.Before(end))
}

func TestParseTimePeriodLast30DaysAndLast90Days(t *testing.T) {
	start30, end30, err := parseTimePeriod("last_30_days")
	require.NoError(t, err)
	assert.InDelta(t, 30*24*time.Hour, end30.Sub(start30), float64(time.Second))

	start90, end90, err := parseTimePeriod("last_90_days")
	require.NoError(t, err)
	assert.InDelta(t, 90*24*time.Hour, end90.Sub(start90), float64(time.Second))
}

func TestParseTimePeriodRejectsUnknownPeriod(t *testing.T) {
	_, _, err := parseTimePeriod("next_quarter")
	assert.Error(t, err)
}

func TestToStringSliceHandlesInterfaceSliceAndBareString(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, toStringSlice([]interface{}{"a", "b"}))
	assert.Equal(t, []string{"solo"}, toStringSlice("solo"))
	assert.Nil(t, toStringSlice(42))
}

func TestToStringSliceSkipsNonStringElements(t *testing.T) {
	assert.Equal(t, []string{"a"}, toStringSlice([]interface{}{"a", 1, nil}))
}

func TestToInterfaceSliceRoundTripsWithToStringSlice(t *testing.T) {
	values := []string{"x", "y", "z"}
	roundTripped := toStringSlice(toInterfaceSlice(values))
	assert.Equal(t, values, roundTripped)
}

func TestToStringMapExtractsOnlyStringValues(t *testing.T) {
	m := toStringMap(map[string]interface{}{"a": "1", "b": 2, "c": "3"})
	assert.Equal(t, map[string]string{"a": "1", "c": "3"}, m)
}

func TestToStringMapReturnsNilForNonMap(t *testing.T) {
	assert.Nil(t, toStringMap("not a map"))
}

func TestStringOrFallsBackOnEmptyOrWrongType(t *testing.T) {
	assert.Equal(t, "value", stringOr("value", "fallback"))
	assert.Equal(t, "fallback", stringOr("", "fallback"))
	assert.Equal(t, "fallback", stringOr(42, "fallback"))
}

func TestIntOrHandlesFloatIntAndStringInputs(t *testing.T) {
	assert.Equal(t, 5, intOr(float64(5), 0))
	assert.Equal(t, 7, intOr(7, 0))
	assert.Equal(t, 9, intOr("9", 0))
	assert.Equal(t, 3, intOr("not a number", 3))
	assert.Equal(t, 3, intOr(nil, 3))
}

func TestGroupKeyFuncByResourceTypeAndRegionAndDefault(t *testing.T) {
	r := models.Resource{Type: "ec2:instance", Region: "us-east-1"}

	assert.Equal(t, "ec2:instance", groupKeyFunc("by_resource_type")(r))
	assert.Equal(t, "us-east-1", groupKeyFunc("by_region")(r))
	assert.Equal(t, "all", groupKeyFunc("anything_else")(r))
}
