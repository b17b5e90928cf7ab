package validation

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/stack"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStack(t *testing.T, timeout int) *stack.Stack {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fn"), 0o755))
	return &stack.Stack{
		Description: "Food analysis API",
		Dir:         dir,
		Functions: map[string]stack.FunctionSpec{
			"AnalysisFn": {
				Source:  "fn",
				Runtime: "python3.11",
				Handler: "handler.lambda_handler",
				Timeout: timeout,
				Memory:  1024,
				Secrets: map[string]string{"API_KEY": "ANTHROPIC_API_KEY"},
			},
		},
		Buckets: map[string]stack.BucketSpec{"Uploads": {Name: "food-uploads"}},
	}
}

func TestValidate(t *testing.T) {
	res, err := Validate(context.Background(), testStack(t, 30), Options{
		Lookup:   config.MapLookup(map[string]string{"ANTHROPIC_API_KEY": "sk-test"}),
		SkipLint: true,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Errors)
	assert.Equal(t, 2, res.Resources)
	assert.Empty(t, res.Warnings)
}

func TestValidate_MissingSecretWarns(t *testing.T) {
	res, err := Validate(context.Background(), testStack(t, 30), Options{SkipLint: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ANTHROPIC_API_KEY")
}

func TestValidate_InvalidTimeout(t *testing.T) {
	res, err := Validate(context.Background(), testStack(t, 0), Options{SkipLint: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "emission failed for AnalysisFn")
	assert.Contains(t, res.Errors[0], "InvalidConfig")
}

func TestValidate_MissingSource(t *testing.T) {
	s := testStack(t, 30)
	fn := s.Functions["AnalysisFn"]
	fn.Source = "missing"
	s.Functions["AnalysisFn"] = fn

	res, err := Validate(context.Background(), s, Options{SkipLint: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "bundling failed for AnalysisFn")
	assert.Contains(t, res.Errors[0], string(bundle.SourceCopyFailed))
}

func TestValidate_StructuralErrorsListed(t *testing.T) {
	s := &stack.Stack{Functions: map[string]stack.FunctionSpec{
		"bad-id": {Source: "x", Runtime: "python3.11", Handler: "h.h"},
		"NoRT":   {Source: "x", Handler: "h.h"},
	}}
	res, err := Validate(context.Background(), s, Options{SkipLint: true})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 2)
}

func TestPlaceholderBundler(t *testing.T) {
	dir := t.TempDir()
	b := placeholderBundler{}

	a1, err := b.Bundle(context.Background(), bundle.BuildSpec{SourceDir: dir, Runtime: "nodejs20.x", Arch: bundle.ArchARM64})
	require.NoError(t, err)
	a2, err := b.Bundle(context.Background(), bundle.BuildSpec{SourceDir: dir, Runtime: "nodejs20.x", Arch: bundle.ArchARM64})
	require.NoError(t, err)
	assert.Equal(t, a1.Digest, a2.Digest)
	assert.Equal(t, bundle.ArchARM64, a1.Arch)

	_, err = b.Bundle(context.Background(), bundle.BuildSpec{SourceDir: dir, Runtime: "python3.11", Image: "public.ecr.aws/sam/build-nodejs20.x"})
	assert.True(t, bundle.IsReason(err, bundle.InvalidBuildSpec))
}

func TestLintResult_TotalIssues(t *testing.T) {
	tests := []struct {
		name     string
		result   LintResult
		expected int
	}{
		{"empty result", LintResult{}, 0},
		{"errors only", LintResult{Errors: []string{"error1", "error2"}}, 2},
		{"mixed issues", LintResult{
			Errors:        []string{"error1"},
			Warnings:      []string{"warning1", "warning2"},
			Informational: []string{"info1"},
		}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.TotalIssues())
		})
	}
}

func TestFormatMatch(t *testing.T) {
	tests := []struct {
		name     string
		match    lint.Match
		expected string
	}{
		{
			name: "simple match",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "E3002"},
				Message: "Invalid property",
			},
			expected: "E3002: Invalid property",
		},
		{
			name: "match with path",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "W2001"},
				Message: "Parameter not used",
				Location: lint.MatchLocation{
					Path: []any{"Resources", "AnalysisFn", "Properties"},
				},
			},
			expected: "W2001: Parameter not used (at Resources/AnalysisFn/Properties)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMatch(tt.match))
		})
	}
}

func TestLintFile_NotFound(t *testing.T) {
	result, err := LintFile("/nonexistent/template.yaml")
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Template file not found")
}

func TestLintTemplate(t *testing.T) {
	tmpl := &wetwire.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]wetwire.ResourceDef{
			"Uploads": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "food-uploads"}},
		},
	}
	result, err := LintTemplate(tmpl)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestPlan(t *testing.T) {
	res, err := Plan(context.Background(), testStack(t, 30), Options{Arch: bundle.ArchARM64, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Graph.Len())
	_, ok := res.Graph.Output("AnalysisFnArn")
	assert.True(t, ok)
	assert.Equal(t, bundle.ArchARM64, res.Artifacts["AnalysisFn"].Arch)
}

func TestPlan_NormalizesArchitecture(t *testing.T) {
	tests := []struct {
		name string
		arch string
		want bundle.Arch
	}{
		{name: "aarch64", arch: "aarch64", want: bundle.ArchARM64},
		{name: "amd64", arch: "amd64", want: bundle.ArchX86_64},
		{name: "upper case", arch: "ARM64", want: bundle.ArchARM64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStack(t, 30)
			fn := s.Functions["AnalysisFn"]
			fn.Architecture = tt.arch
			s.Functions["AnalysisFn"] = fn

			res, err := Plan(context.Background(), s, Options{Logger: quietLogger()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Artifacts["AnalysisFn"].Arch)
		})
	}
}

func TestPlaceholderBundler_UnknownArch(t *testing.T) {
	_, err := placeholderBundler{}.Bundle(context.Background(), bundle.BuildSpec{
		SourceDir: t.TempDir(),
		Runtime:   "python3.11",
		Arch:      "sparc",
	})
	assert.True(t, bundle.IsReason(err, bundle.InvalidBuildSpec), "got %v", err)
}

func TestValidate_PlatformRangesReported(t *testing.T) {
	s := testStack(t, 901)
	fn := s.Functions["AnalysisFn"]
	fn.Memory = 64
	s.Functions["AnalysisFn"] = fn

	res, err := Validate(context.Background(), s, Options{SkipLint: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, "AnalysisFn.MemorySize: 64 is below the minimum 128")
	assert.Contains(t, res.Errors, "AnalysisFn.Timeout: 901 exceeds the maximum 900")
}
