package serialize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-lambda-go/intrinsics"
)

type testCode struct {
	S3Bucket any    `json:"S3Bucket"`
	S3Key    string `json:"S3Key"`
}

type testEnvironment struct {
	Variables map[string]string `json:"Variables"`
}

type testFunction struct {
	Handler       string           `json:"Handler"`
	Description   string           `json:"Description,omitempty"`
	Timeout       int              `json:"Timeout"`
	MemorySize    int              `json:"MemorySize"`
	Architectures []string         `json:"Architectures,omitempty"`
	Code          testCode         `json:"Code"`
	Role          any              `json:"Role"`
	Environment   *testEnvironment `json:"Environment,omitempty"`
	internal      string
	Skipped       string `json:"-"`
}

func TestProperties_OmitsZeroFields(t *testing.T) {
	props, err := Properties(testFunction{Handler: "handler.main", Timeout: 30, internal: "x", Skipped: "y"})
	require.NoError(t, err)

	assert.Equal(t, "handler.main", props["Handler"])
	assert.NotContains(t, props, "Description")
	assert.NotContains(t, props, "MemorySize")
	assert.NotContains(t, props, "Architectures")
	assert.NotContains(t, props, "Role")
	assert.NotContains(t, props, "Environment")
	assert.NotContains(t, props, "internal")
	assert.NotContains(t, props, "-")
	assert.NotContains(t, props, "Skipped")
}

func TestProperties_NumbersAreFloat64(t *testing.T) {
	props, err := Properties(&testFunction{Handler: "h.h", Timeout: 30, MemorySize: 1024})
	require.NoError(t, err)
	assert.Equal(t, float64(30), props["Timeout"])
	assert.Equal(t, float64(1024), props["MemorySize"])
}

func TestProperties_NestedAndIntrinsics(t *testing.T) {
	fn := testFunction{
		Handler:       "handler.lambda_handler",
		Architectures: []string{"arm64"},
		Code:          testCode{S3Bucket: intrinsics.Ref{LogicalName: "AssetBucket"}, S3Key: "assets/abc.zip"},
		Role:          intrinsics.GetAtt{LogicalName: "FnServiceRole", Attribute: "Arn"},
		Environment:   &testEnvironment{Variables: map[string]string{"API_KEY": ""}},
	}
	props, err := Properties(fn)
	require.NoError(t, err)

	assert.Equal(t, []any{"arm64"}, props["Architectures"])
	assert.Equal(t, map[string]any{
		"S3Bucket": map[string]any{"Ref": "AssetBucket"},
		"S3Key":    "assets/abc.zip",
	}, props["Code"])
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"FnServiceRole", "Arn"}}, props["Role"])
	// Empty values inside maps are kept.
	assert.Equal(t, map[string]any{"Variables": map[string]any{"API_KEY": ""}}, props["Environment"])
}

func TestProperties_MatchesDecodedJSON(t *testing.T) {
	fn := testFunction{Handler: "h.h", Timeout: 3, Code: testCode{S3Key: "k"}}
	props, err := Properties(fn)
	require.NoError(t, err)

	data, err := json.Marshal(props)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, decoded, props)
}

func TestProperties_Errors(t *testing.T) {
	_, err := Properties("not a struct")
	assert.Error(t, err)

	props, err := Properties((*testFunction)(nil))
	assert.NoError(t, err)
	assert.Nil(t, props)

	_, err = Properties(struct {
		Bad map[int]string `json:"Bad"`
	}{Bad: map[int]string{1: "x"}})
	assert.Error(t, err)
}
