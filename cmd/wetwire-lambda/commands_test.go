package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/emit"
	"github.com/lex00/wetwire-lambda-go/internal/graph"
	"github.com/lex00/wetwire-lambda-go/internal/synth"
	"github.com/lex00/wetwire-lambda-go/internal/template"
)

func testGraph(t *testing.T) (*graph.Graph, map[string]*bundle.Artifact) {
	t.Helper()
	art := &bundle.Artifact{
		RootPath:     "/tmp/stage",
		Files:        sets.New("handler.py", "requests/__init__.py"),
		Dependencies: []string{"requests"},
		Digest:       "abc123",
		Runtime:      "python3.11",
		Arch:         bundle.ArchARM64,
	}
	g := graph.New()
	_, err := emit.DefineBucket(g, "Uploads", graph.Bucket{BucketName: "food-uploads"})
	require.NoError(t, err)
	_, err = emit.DefineFunction(g, "AnalysisFn", art, graph.FunctionConfig{
		Handler:        "handler.lambda_handler",
		TimeoutSeconds: 30,
		MemoryMB:       1024,
	})
	require.NoError(t, err)
	return g, map[string]*bundle.Artifact{"AnalysisFn": art}
}

func TestCommandsRegisterFlags(t *testing.T) {
	tests := []struct {
		name   string
		newCmd func() *cobra.Command
		flags  []string
	}{
		{"synth", newSynthCmd, []string{"format", "output", "publish", "compare", "export", "summary"}},
		{"bundle", newBundleCmd, []string{"function", "format"}},
		{"validate", newValidateCmd, []string{"format", "skip-lint"}},
		{"graph", newGraphCmd, []string{"format", "include-parameters", "include-outputs", "cluster"}},
		{"list", newListCmd, []string{"format", "resolve"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.newCmd()
			assert.Equal(t, tt.name, cmd.Name())
			assert.NotEmpty(t, cmd.Short)
			for _, f := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(f), "missing --%s", f)
			}
		})
	}
}

func TestBuildResult(t *testing.T) {
	g, arts := testGraph(t)
	tmpl, err := template.Render(g, template.Options{})
	require.NoError(t, err)

	result := buildResult(&synth.Result{Graph: g, Artifacts: arts}, tmpl)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"Uploads", "AnalysisFn"}, result.Resources)
	assert.Equal(t, []string{"UploadsName", "UploadsArn", "AnalysisFnArn"}, result.Outputs)
	require.Len(t, result.Artifacts, 1)
	a := result.Artifacts[0]
	assert.Equal(t, "AnalysisFn", a.Function)
	assert.Equal(t, "arm64", a.Architecture)
	assert.Equal(t, "assets/abc123.zip", a.Key)
	assert.Equal(t, 2, a.Files)
	assert.Equal(t, []string{"requests"}, a.Dependencies)
}

func TestListResult(t *testing.T) {
	g, _ := testGraph(t)

	result := listResult(g, map[string]string{"AnalysisFnArn": "arn:aws:lambda:eu-west-1:123456789012:function:analysis"})
	require.Len(t, result.Resources, 2)
	assert.Equal(t, "AnalysisFn", result.Resources[1].Name)
	assert.Equal(t, "function", result.Resources[1].Kind)
	assert.Equal(t, template.TypeFunction, result.Resources[1].Type)

	require.Len(t, result.Outputs, 3)
	assert.Equal(t, "Ref", result.Outputs[0].Attribute)
	assert.Equal(t, "AnalysisFnArn", result.Outputs[2].Name)
	assert.Equal(t, "Arn", result.Outputs[2].Attribute)
	assert.Equal(t, "arn:aws:lambda:eu-west-1:123456789012:function:analysis", result.Outputs[2].Value)
	assert.Empty(t, result.Outputs[0].Value)
}

func TestLoadResolver(t *testing.T) {
	g, _ := testGraph(t)
	path := filepath.Join(t.TempDir(), "provisioned.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
AnalysisFn.Arn: arn:aws:lambda:eu-west-1:123456789012:function:analysis
Uploads: food-uploads
Uploads.Arn: arn:aws:s3:::food-uploads
`), 0o644))

	r, err := loadResolver(path)
	require.NoError(t, err)
	resolved, err := g.ResolveOutputs(r)
	require.NoError(t, err)
	assert.Equal(t, "food-uploads", resolved["UploadsName"])
	assert.Equal(t, "arn:aws:s3:::food-uploads", resolved["UploadsArn"])

	delete(r, "Uploads")
	_, err = g.ResolveOutputs(r)
	assert.ErrorIs(t, err, graph.ErrUnresolved)
}

func TestEncodeTemplate(t *testing.T) {
	g, _ := testGraph(t)
	tmpl, err := template.Render(g, template.Options{})
	require.NoError(t, err)

	data, err := encodeTemplate(tmpl, "json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"AnalysisFnArn"`)

	_, err = encodeTemplate(tmpl, "xml")
	assert.ErrorContains(t, err, "unknown format")
}
