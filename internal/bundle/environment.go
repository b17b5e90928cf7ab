package bundle

import (
	"context"
)

// Mount points of the build environment.
const (
	InputDir  = "/asset-input"
	OutputDir = "/asset-output"
)

// Job is the single composite instruction handed to a build environment:
// install dependencies from the manifest into the output directory, then
// copy the source tree into the same directory.
type Job struct {
	Runtime Runtime
	// Image is the build image reference, pinned to Runtime.
	Image string
	// Arch pins the platform the image runs on. It is never taken from the host.
	Arch Arch
	// SourceDir is the host source tree, mounted read-only at InputDir.
	SourceDir string
	// StagingDir is the host staging directory, mounted at OutputDir.
	StagingDir string
	// Manifest is the manifest path relative to SourceDir, empty when the
	// install step is skipped.
	Manifest string
	Command  []string
	Env      []string
}

// Result is what the build environment reports back.
type Result struct {
	ExitCode int
	Output   string
}

// Environment is an isolated execution environment keyed by runtime and
// architecture.
type Environment interface {
	Run(ctx context.Context, job Job) (Result, error)
}
