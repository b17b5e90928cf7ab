package bundle

import (
	"errors"
	"fmt"
)

// Reason classifies a BuildError.
type Reason string

const (
	// ManifestNotFound means the dependency manifest does not exist. The
	// bundler treats it as an empty dependency set.
	ManifestNotFound Reason = "ManifestNotFound"
	// DependencyInstallFailed means the build environment reported a non-zero
	// install result, or an installed artifact lacks a declared dependency.
	DependencyInstallFailed Reason = "DependencyInstallFailed"
	// SourceCopyFailed means the source tree could not be read or copied.
	SourceCopyFailed Reason = "SourceCopyFailed"
	// BuildTimeout means the build exceeded its wall-clock budget.
	BuildTimeout Reason = "BuildTimeout"
	// InvalidBuildSpec means the BuildSpec names an unknown runtime or architecture,
	// or a build image that does not match the runtime.
	InvalidBuildSpec Reason = "InvalidBuildSpec"
	// EnvironmentFailed means the isolated build environment could not be
	// started or stopped responding.
	EnvironmentFailed Reason = "EnvironmentFailed"
)

// Fatal reports whether a failure with this reason must abort synthesis.
func (r Reason) Fatal() bool {
	return r != ManifestNotFound
}

// BuildError is returned by Bundle.
type BuildError struct {
	Reason Reason
	// Path is the source directory or manifest involved, when known.
	Path string
	// Detail is the build environment output or a short explanation.
	Detail string
	Err    error
}

func (e *BuildError) Error() string {
	msg := string(e.Reason)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is matches another *BuildError by Reason, so callers can write
// errors.Is(err, &BuildError{Reason: BuildTimeout}).
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// IsReason reports whether err is a BuildError with the given reason.
func IsReason(err error, reason Reason) bool {
	var be *BuildError
	return errors.As(err, &be) && be.Reason == reason
}
