package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileBuildsEverySchema(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)
	for _, name := range []string{
		CheckTagCompliance, FindUntaggedResources, ValidateResourceTags,
		GetCostAttributionGap, SuggestTags, GetTaggingPolicy,
		GenerateComplianceReport, GetViolationHistory,
	} {
		assert.True(t, r.Known(name), name)
	}
	assert.False(t, r.Known("not_a_tool"))
}

func TestValidateRejectsAdditionalProperties(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	_, err = r.Validate(CheckTagCompliance, map[string]interface{}{
		"resource_types": []interface{}{"ec2:instance"},
		"bogus_field":    "x",
	})
	assert.Error(t, err)
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	_, err = r.Validate(CheckTagCompliance, map[string]interface{}{})
	assert.Error(t, err)
}

func TestValidateRejectsInvalidEnum(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	_, err = r.Validate(CheckTagCompliance, map[string]interface{}{
		"resource_types": []interface{}{"ec2:instance"},
		"severity":       "not_a_severity",
	})
	assert.Error(t, err)
}

func TestValidateAutoUnwrapsSingleElementEnumArray(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	args, err := r.Validate(CheckTagCompliance, map[string]interface{}{
		"resource_types": []interface{}{"ec2:instance"},
		"severity":       []interface{}{"errors_only"},
	})
	require.NoError(t, err)
	assert.Equal(t, "errors_only", args["severity"])
}

func TestValidateAcceptsValidResourceArns(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	_, err = r.Validate(ValidateResourceTags, map[string]interface{}{
		"resource_arns": []interface{}{"arn:aws:ec2:us-east-1:123456789012:instance/i-1"},
	})
	assert.NoError(t, err)
}

func TestValidateRejectsTooManyResourceArns(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	arns := make([]interface{}, 101)
	for i := range arns {
		arns[i] = "arn:aws:ec2:us-east-1:123456789012:instance/i-" + string(rune('a'+i%26))
	}
	_, err = r.Validate(ValidateResourceTags, map[string]interface{}{"resource_arns": arns})
	assert.Error(t, err)
}

func TestValidateGetTaggingPolicyAcceptsEmptyArgs(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	_, err = r.Validate(GetTaggingPolicy, map[string]interface{}{})
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownTool(t *testing.T) {
	r, err := Compile()
	require.NoError(t, err)

	_, err = r.Validate("not_a_tool", map[string]interface{}{})
	assert.Error(t, err)
}
