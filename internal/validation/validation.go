// Package validation checks a stack without building it and lints rendered
// templates with cfn-lint-go.
//
// Validate runs the same emission path as synthesis, but against
// placeholder artifacts so no build container is started:
//   - stack structure and resource limits (emit)
//   - template rendering and offline property schemas
//   - cfn-lint-go rules on the rendered template
package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"k8s.io/apimachinery/pkg/util/sets"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/schema"
	"github.com/lex00/wetwire-lambda-go/internal/stack"
	"github.com/lex00/wetwire-lambda-go/internal/synth"
	"github.com/lex00/wetwire-lambda-go/internal/template"
)

// LintResult contains the result of running cfn-lint-go.
type LintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r LintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// Options configure Validate.
type Options struct {
	Lookup config.Lookup
	Arch   bundle.Arch
	// SkipLint disables the cfn-lint-go pass.
	SkipLint bool
	Logger   *slog.Logger
}

// Validate checks s and returns a ValidateResult. Problems with the stack
// are reported in the result; the error is reserved for failures of the
// validator itself.
func Validate(ctx context.Context, s *stack.Stack, opts Options) (*wetwire.ValidateResult, error) {
	result := &wetwire.ValidateResult{}

	if err := s.Validate(); err != nil {
		result.Errors = append(result.Errors, splitJoined(err)...)
		return result, nil
	}

	res, err := Plan(ctx, s, opts)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	result.Resources = res.Graph.Len()
	for _, name := range res.MissingSecrets {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s is not set and will be deployed empty", name))
	}

	tmpl, err := template.Render(res.Graph, template.Options{Description: s.Description})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	sr := schema.ValidateTemplate(tmpl, schema.Options{})
	for _, issue := range sr.Errors {
		result.Errors = append(result.Errors, issue.String())
	}
	for _, issue := range sr.Warnings {
		result.Warnings = append(result.Warnings, issue.String())
	}

	if !opts.SkipLint {
		lr, err := LintTemplate(tmpl)
		if err != nil {
			return nil, err
		}
		result.Errors = append(result.Errors, lr.Errors...)
		result.Warnings = append(result.Warnings, lr.Warnings...)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// Plan runs a synthesis pass over s with placeholder artifacts. The graph
// has the shape a real pass would produce, but artifact digests are derived
// from the build spec rather than the built files.
func Plan(ctx context.Context, s *stack.Stack, opts Options) (*synth.Result, error) {
	return synth.Run(ctx, s, synth.Options{
		Bundler: placeholderBundler{},
		Lookup:  opts.Lookup,
		Arch:    opts.Arch,
		Logger:  opts.Logger,
	})
}

// LintTemplate writes t to a temporary YAML file and lints it.
func LintTemplate(t *wetwire.Template) (*LintResult, error) {
	data, err := template.ToYAML(t)
	if err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}
	dir, err := os.MkdirTemp("", "wetwire-lint-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "template.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}
	return LintFile(path)
}

// LintFile runs cfn-lint-go on the given template file.
func LintFile(templatePath string) (*LintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &LintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	matches, err := lint.New(lint.Options{}).LintFile(templatePath)
	if err != nil {
		return &LintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &LintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}
	for _, match := range matches {
		formatted := formatMatch(match)
		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable.
	result.Passed = len(result.Errors) == 0
	return result, nil
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	if len(match.Location.Path) == 0 {
		return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
	}
	parts := make([]string, len(match.Location.Path))
	for i, p := range match.Location.Path {
		parts[i] = fmt.Sprintf("%v", p)
	}
	return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, strings.Join(parts, "/"))
}

func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, splitJoined(e)...)
		}
		return msgs
	}
	return []string{err.Error()}
}

// placeholderBundler stands in for a real build. It checks what can be
// checked without a container and returns an artifact whose digest is
// derived from the build spec.
type placeholderBundler struct{}

func (placeholderBundler) Bundle(_ context.Context, spec bundle.BuildSpec) (*bundle.Artifact, error) {
	rt, ok := bundle.LookupRuntime(spec.Runtime)
	if !ok {
		return nil, &bundle.BuildError{Reason: bundle.InvalidBuildSpec, Detail: "unsupported runtime " + spec.Runtime}
	}
	if spec.Image != "" && !rt.MatchesImage(spec.Image) {
		return nil, &bundle.BuildError{Reason: bundle.InvalidBuildSpec, Detail: "image " + spec.Image + " does not match runtime " + rt.ID}
	}
	info, err := os.Stat(spec.SourceDir)
	if err == nil && !info.IsDir() {
		err = errors.New("not a directory")
	}
	if err != nil {
		return nil, &bundle.BuildError{Reason: bundle.SourceCopyFailed, Path: spec.SourceDir, Err: err}
	}
	arch, err := bundle.ParseArch(string(spec.Arch))
	if err != nil {
		return nil, &bundle.BuildError{Reason: bundle.InvalidBuildSpec, Err: err}
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{spec.SourceDir, spec.Runtime, string(arch)}, "\x00")))
	return &bundle.Artifact{
		RootPath: spec.SourceDir,
		Files:    sets.New[string](),
		Digest:   hex.EncodeToString(sum[:]),
		Runtime:  rt.ID,
		Arch:     arch,
		Image:    rt.Image,
	}, nil
}
