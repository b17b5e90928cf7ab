package wetwire_lambda

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTemplate_JSONOmitsEmptySections(t *testing.T) {
	tmpl := Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]ResourceDef{
			"AnalysisFn": {Type: "AWS::Lambda::Function"},
		},
	}

	data, err := json.Marshal(tmpl)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Contains(t, parsed, "Resources")
	assert.NotContains(t, parsed, "Parameters")
	assert.NotContains(t, parsed, "Outputs")
	assert.NotContains(t, parsed, "Description")
}

func TestOutput_YAMLRoundTrip(t *testing.T) {
	out := Output{
		Description: "ARN of AnalysisFn",
		Value:       map[string]any{"Fn::GetAtt": []any{"AnalysisFn", "Arn"}},
		Export:      &Export{Name: "food-AnalysisFnArn"},
	}

	data, err := yaml.Marshal(out)
	require.NoError(t, err)

	var parsed Output
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "ARN of AnalysisFn", parsed.Description)
	require.NotNil(t, parsed.Export)
	assert.Equal(t, "food-AnalysisFnArn", parsed.Export.Name)
}

func TestBuildResult_JSON(t *testing.T) {
	result := BuildResult{
		Success:   true,
		Resources: []string{"AnalysisFn"},
		Outputs:   []string{"AnalysisFnArn"},
		Artifacts: []ArtifactSummary{{
			Function:     "AnalysisFn",
			Runtime:      "python3.11",
			Architecture: "x86_64",
			Digest:       "abc",
			Files:        3,
		}},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success":true`)
	assert.Contains(t, string(data), `"function":"AnalysisFn"`)
	assert.NotContains(t, string(data), `"errors"`)
}

func TestDiffSummary_IsEmpty(t *testing.T) {
	assert.True(t, DiffSummary{}.IsEmpty())
	assert.False(t, DiffSummary{Modified: 1, Total: 1}.IsEmpty())
}
