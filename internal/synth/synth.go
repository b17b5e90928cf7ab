// Package synth runs one synthesis pass over a stack: every function is
// bundled first, then every resource is declared into a fresh graph. Any
// fatal error aborts the pass and no graph is returned.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/emit"
	"github.com/lex00/wetwire-lambda-go/internal/graph"
	"github.com/lex00/wetwire-lambda-go/internal/stack"
)

// Stage names the phase of a synthesis pass.
type Stage string

const (
	StageBundling Stage = "bundling"
	StageEmission Stage = "emission"
)

// StageError reports the stage and resource a synthesis pass failed on.
type StageError struct {
	Stage     Stage
	LogicalID string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.LogicalID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Bundler builds function artifacts. *bundle.Bundler implements it.
type Bundler interface {
	Bundle(ctx context.Context, spec bundle.BuildSpec) (*bundle.Artifact, error)
}

// Options configure a synthesis pass.
type Options struct {
	Bundler Bundler
	// Lookup supplies secret values. Nil treats every secret as absent.
	Lookup config.Lookup
	// Arch applies to functions that name no architecture.
	Arch   bundle.Arch
	Logger *slog.Logger
}

// Result is a completed synthesis pass.
type Result struct {
	Graph *graph.Graph
	// Artifacts are keyed by function logical ID.
	Artifacts map[string]*bundle.Artifact
	// MissingSecrets lists external values that were absent and forwarded
	// as empty strings.
	MissingSecrets []string
}

// Cleanup removes the staging directories of the pass's artifacts.
func (r *Result) Cleanup() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, id := range slices.Sorted(maps.Keys(r.Artifacts)) {
		if err := r.Artifacts[id].Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func discard(artifacts map[string]*bundle.Artifact, logger *slog.Logger) {
	r := &Result{Artifacts: artifacts}
	if err := r.Cleanup(); err != nil {
		logger.Warn("failed to remove artifacts of aborted pass", "error", err)
	}
}

// Run synthesizes s. When the pass aborts, artifacts already built are
// cleaned up.
func Run(ctx context.Context, s *stack.Stack, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Bundler == nil && len(s.Functions) > 0 {
		return nil, fmt.Errorf("synth: no bundler configured")
	}

	artifacts := make(map[string]*bundle.Artifact, len(s.Functions))
	done := false
	defer func() {
		if !done {
			discard(artifacts, logger)
		}
	}()
	for _, id := range s.FunctionIDs() {
		art, err := BundleFunction(ctx, s, id, opts)
		if err != nil {
			return nil, err
		}
		artifacts[id] = art
	}

	g := graph.New()
	for _, id := range s.BucketIDs() {
		if _, err := emit.DefineBucket(g, id, s.Buckets[id].Bucket()); err != nil {
			return nil, &StageError{Stage: StageEmission, LogicalID: id, Err: err}
		}
	}

	var missing []string
	for _, id := range s.FunctionIDs() {
		fn := s.Functions[id]
		for _, name := range opts.Lookup.Missing(fn.SecretSources()...) {
			logger.Warn("secret not set, forwarding empty value", "function", id, "name", name)
			missing = append(missing, name)
		}
		if _, err := emit.DefineFunction(g, id, artifacts[id], fn.Config(opts.Lookup)); err != nil {
			return nil, &StageError{Stage: StageEmission, LogicalID: id, Err: err}
		}
	}

	logger.Info("synthesized", "resources", g.Len(), "outputs", len(g.Outputs()))
	done = true
	return &Result{Graph: g, Artifacts: artifacts, MissingSecrets: missing}, nil
}

// BundleFunction bundles a single function of s.
func BundleFunction(ctx context.Context, s *stack.Stack, id string, opts Options) (*bundle.Artifact, error) {
	fn, ok := s.Functions[id]
	if !ok {
		return nil, &StageError{Stage: StageBundling, LogicalID: id, Err: fmt.Errorf("no function %q in stack", id)}
	}
	arch := opts.Arch
	if arch == "" {
		arch = bundle.ArchX86_64
	}
	art, err := opts.Bundler.Bundle(ctx, s.BuildSpec(fn, arch))
	if err != nil {
		return nil, &StageError{Stage: StageBundling, LogicalID: id, Err: err}
	}
	return art, nil
}
