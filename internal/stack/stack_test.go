package stack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/config"
)

const foodStack = `
description: Food analysis API
functions:
  AnalysisFn:
    source: ./food-analysis-lambda
    runtime: python3.11
    handler: handler.lambda_handler
    timeout: 30
    memory: 1024
    description: Analyses food images and text descriptions
    environment:
      LOG_LEVEL: info
    secrets:
      API_KEY: ANTHROPIC_API_KEY
  ImageFn:
    source: /srv/analyse_food_image_lambda
    runtime: python3.12
    architecture: arm64
    manifest: deps/requirements.txt
    handler: handler.lambda_handler
    timeout: 60
    memory: 2048
buckets:
  Uploads:
    name: food-uploads
    versioned: true
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(foodStack), "/work")
	require.NoError(t, err)

	assert.Equal(t, "Food analysis API", s.Description)
	assert.Equal(t, []string{"AnalysisFn", "ImageFn"}, s.FunctionIDs())
	assert.Equal(t, []string{"Uploads"}, s.BucketIDs())

	fn := s.Functions["AnalysisFn"]
	assert.Equal(t, "handler.lambda_handler", fn.Handler)
	assert.Equal(t, 30, fn.Timeout)
	assert.Equal(t, 1024, fn.Memory)
	assert.Equal(t, map[string]string{"API_KEY": "ANTHROPIC_API_KEY"}, fn.Secrets)

	b := s.Buckets["Uploads"].Bucket()
	assert.Equal(t, "food-uploads", b.BucketName)
	assert.True(t, b.Versioned)
}

func TestBuildSpec(t *testing.T) {
	s, err := Parse([]byte(foodStack), "/work")
	require.NoError(t, err)

	spec := s.BuildSpec(s.Functions["AnalysisFn"], bundle.ArchX86_64)
	assert.Equal(t, bundle.BuildSpec{
		SourceDir: filepath.Join("/work", "food-analysis-lambda"),
		Runtime:   "python3.11",
		Arch:      bundle.ArchX86_64,
	}, spec)

	spec = s.BuildSpec(s.Functions["ImageFn"], bundle.ArchX86_64)
	assert.Equal(t, "/srv/analyse_food_image_lambda", spec.SourceDir)
	assert.Equal(t, bundle.ArchARM64, spec.Arch)
	assert.Equal(t, "deps/requirements.txt", spec.ManifestPath)

	assert.Equal(t, []string{filepath.Join("/work", "food-analysis-lambda"), "/srv/analyse_food_image_lambda"}, s.SourceDirs())
}

func TestFunctionConfig_Secrets(t *testing.T) {
	s, err := Parse([]byte(foodStack), "/work")
	require.NoError(t, err)
	fn := s.Functions["AnalysisFn"]

	cfg := fn.Config(config.MapLookup(map[string]string{"ANTHROPIC_API_KEY": "sk-test"}))
	assert.Equal(t, map[string]string{"LOG_LEVEL": "info", "API_KEY": "sk-test"}, cfg.Environment)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, 1024, cfg.MemoryMB)

	// An unset secret is forwarded as an empty string.
	cfg = fn.Config(config.MapLookup(nil))
	assert.Equal(t, "", cfg.Environment["API_KEY"])
	assert.Contains(t, cfg.Environment, "API_KEY")

	assert.Equal(t, []string{"ANTHROPIC_API_KEY"}, fn.SecretSources())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: "no resources"},
		{name: "unknown field", doc: "functions:\n  Fn:\n    sauce: ./x\n", want: "sauce"},
		{name: "missing source", doc: "functions:\n  Fn:\n    runtime: python3.11\n    handler: h.h\n", want: "source is required"},
		{name: "missing handler", doc: "functions:\n  Fn:\n    source: .\n    runtime: python3.11\n", want: "handler is required"},
		{name: "bad runtime", doc: "functions:\n  Fn:\n    source: .\n    runtime: ruby3.2\n    handler: h.h\n", want: "unsupported runtime"},
		{name: "bad arch", doc: "functions:\n  Fn:\n    source: .\n    runtime: python3.11\n    handler: h.h\n    architecture: s390x\n", want: "unsupported architecture"},
		{name: "bad id", doc: "functions:\n  my-fn:\n    source: .\n    runtime: python3.11\n    handler: h.h\n", want: "alphanumeric"},
		{name: "id clash", doc: "functions:\n  Data:\n    source: .\n    runtime: python3.11\n    handler: h.h\nbuckets:\n  Data: {}\n", want: "also used by a bucket"},
		{name: "env secret clash", doc: "functions:\n  Fn:\n    source: .\n    runtime: python3.11\n    handler: h.h\n    environment: {KEY: a}\n    secrets: {KEY: B}\n", want: "both an environment variable and a secret"},
		{name: "bucket named like a role", doc: "functions:\n  Fn:\n    source: .\n    runtime: python3.11\n    handler: h.h\nbuckets:\n  FnServiceRole: {}\n", want: "reserved for the execution role of Fn"},
		{name: "function named like a role", doc: "functions:\n  Fn:\n    source: .\n    runtime: python3.11\n    handler: h.h\n  FnServiceRole:\n    source: .\n    runtime: python3.11\n    handler: h.h\n", want: "reserved for the execution role of Fn"},
		{name: "malformed", doc: "functions: [", want: "parsing stack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "/work")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(foodStack), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Example(t *testing.T) {
	s, err := Load(filepath.Join("..", "..", "examples", "food-analysis", "stack.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"AnalysisFn"}, s.FunctionIDs())
	assert.Equal(t, []string{"Uploads"}, s.BucketIDs())
	_, err = os.Stat(s.SourceDir(s.Functions["AnalysisFn"]))
	assert.NoError(t, err)
}
