// Package bundle produces self-contained function artifacts.
//
// A Bundler installs a runtime's declared dependencies inside an isolated
// build environment pinned to the runtime and CPU architecture, then merges
// the source tree into the same staging directory:
//
//	b := bundle.New(env, bundle.WithTimeout(5*time.Minute))
//	artifact, err := b.Bundle(ctx, bundle.BuildSpec{
//	    SourceDir: "./food-analysis-lambda",
//	    Runtime:   "python3.11",
//	})
//
// The resulting Artifact needs no further install step at deploy time.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultTimeout bounds a single bundling run.
const DefaultTimeout = 5 * time.Minute

// maxDetail caps how much build output is kept in a BuildError.
const maxDetail = 2048

// BuildSpec describes one artifact to build.
type BuildSpec struct {
	// SourceDir must exist and be readable.
	SourceDir string
	// Runtime is a runtime identifier such as "python3.11".
	Runtime string
	// ManifestPath is the dependency manifest, relative to SourceDir or
	// absolute inside it. Empty means the runtime's default manifest name.
	ManifestPath string
	// Image overrides the runtime's build image. It must match the runtime.
	Image string
	// Arch is the target architecture. Empty means x86_64.
	Arch Arch
	// StagingDir is where the artifact is assembled. It must be empty or
	// absent; empty means a fresh temporary directory.
	StagingDir string
}

// Artifact is a dependency-complete deployable unit. It is immutable once
// returned by Bundle.
type Artifact struct {
	RootPath string
	// Files holds slash-separated paths relative to RootPath.
	Files sets.Set[string]
	// Dependencies are the names declared in the manifest.
	Dependencies []string
	// Digest is the sha256 of the artifact's paths and contents.
	Digest  string
	Runtime string
	Arch    Arch
	Image   string

	// temporary marks a staging directory created by Bundle.
	temporary bool
}

// Bundler builds artifacts in an isolated Environment.
type Bundler struct {
	env     Environment
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithTimeout sets the wall-clock budget of one Bundle call.
func WithTimeout(d time.Duration) Option {
	return func(b *Bundler) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bundler) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Bundler running builds in env.
func New(env Environment, opts ...Option) *Bundler {
	b := &Bundler{
		env:     env,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bundle builds the artifact described by spec. Failures are *BuildError.
func (b *Bundler) Bundle(ctx context.Context, spec BuildSpec) (*Artifact, error) {
	rt, ok := LookupRuntime(spec.Runtime)
	if !ok {
		return nil, &BuildError{
			Reason: InvalidBuildSpec,
			Detail: fmt.Sprintf("unsupported runtime %q (supported: %s)", spec.Runtime, strings.Join(Runtimes(), ", ")),
		}
	}
	arch, err := ParseArch(string(spec.Arch))
	if err != nil {
		return nil, &BuildError{Reason: InvalidBuildSpec, Err: err}
	}
	image := spec.Image
	if image == "" {
		image = rt.Image
	} else if !rt.MatchesImage(image) {
		return nil, &BuildError{
			Reason: InvalidBuildSpec,
			Detail: fmt.Sprintf("build image %s does not match runtime %s", image, rt.ID),
		}
	}

	source, err := checkSource(spec.SourceDir)
	if err != nil {
		return nil, err
	}
	manifest, deps, err := b.resolveManifest(source, spec.ManifestPath, rt)
	if err != nil {
		return nil, err
	}
	staging, err := prepareStaging(spec.StagingDir)
	if err != nil {
		return nil, err
	}
	temporary := spec.StagingDir == ""
	built := false
	defer func() {
		if temporary && !built {
			if err := os.RemoveAll(staging); err != nil {
				b.logger.Warn("failed to remove staging directory", "path", staging, "error", err)
			}
		}
	}()

	job := Job{
		Runtime:    rt,
		Image:      image,
		Arch:       arch,
		SourceDir:  source,
		StagingDir: staging,
		Manifest:   manifest,
		Command:    []string{"bash", "-c", rt.Script(manifest)},
		Env:        rt.Env(),
	}

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	b.logger.Info("bundling",
		"runtime", rt.ID,
		"arch", arch,
		"image", image,
		"source", source,
		"dependencies", len(deps))

	res, err := b.env.Run(runCtx, job)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &BuildError{
			Reason: BuildTimeout,
			Path:   source,
			Detail: fmt.Sprintf("exceeded %s", b.timeout),
			Err:    runCtx.Err(),
		}
	}
	if err != nil {
		return nil, &BuildError{Reason: EnvironmentFailed, Path: source, Err: err}
	}
	switch res.ExitCode {
	case 0:
	case exitCopyFailed:
		return nil, &BuildError{Reason: SourceCopyFailed, Path: source, Detail: tail(res.Output)}
	default:
		return nil, &BuildError{
			Reason: DependencyInstallFailed,
			Path:   filepath.Join(source, manifest),
			Detail: fmt.Sprintf("exit code %d: %s", res.ExitCode, tail(res.Output)),
		}
	}

	files, err := listFiles(staging)
	if err != nil {
		return nil, &BuildError{Reason: EnvironmentFailed, Path: staging, Err: err}
	}
	if missing := missingDependencies(deps, files, rt.Family); len(missing) > 0 {
		return nil, &BuildError{
			Reason: DependencyInstallFailed,
			Path:   filepath.Join(source, manifest),
			Detail: "no files installed for " + strings.Join(missing, ", "),
		}
	}
	digest, err := digestFiles(staging, files)
	if err != nil {
		return nil, &BuildError{Reason: EnvironmentFailed, Path: staging, Err: err}
	}

	b.logger.Info("bundled",
		"runtime", rt.ID,
		"files", files.Len(),
		"digest", digest[:12],
		"elapsed", time.Since(start).Round(time.Millisecond))

	built = true
	return &Artifact{
		RootPath:     staging,
		Files:        files,
		Dependencies: deps,
		Digest:       digest,
		Runtime:      rt.ID,
		Arch:         arch,
		Image:        image,
		temporary:    temporary,
	}, nil
}

// Cleanup removes the artifact's staging directory if Bundle created it.
// Artifacts assembled in a caller-provided StagingDir are left in place.
func (a *Artifact) Cleanup() error {
	if a == nil || !a.temporary {
		return nil
	}
	return os.RemoveAll(a.RootPath)
}

func checkSource(dir string) (string, error) {
	if dir == "" {
		return "", &BuildError{Reason: SourceCopyFailed, Detail: "source directory is required"}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &BuildError{Reason: SourceCopyFailed, Path: dir, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &BuildError{Reason: SourceCopyFailed, Path: abs, Err: err}
	}
	if !info.IsDir() {
		return "", &BuildError{Reason: SourceCopyFailed, Path: abs, Detail: "not a directory"}
	}
	if _, err := os.ReadDir(abs); err != nil {
		return "", &BuildError{Reason: SourceCopyFailed, Path: abs, Err: err}
	}
	return abs, nil
}

// resolveManifest returns the manifest path relative to source and the
// declared dependencies. A missing or empty manifest yields no manifest, so
// the install step is skipped.
func (b *Bundler) resolveManifest(source, manifestPath string, rt Runtime) (string, []string, error) {
	path := manifestPath
	if path == "" {
		path = rt.Manifest
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(source, path)
	}
	rel, err := filepath.Rel(source, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", nil, &BuildError{
			Reason: InvalidBuildSpec,
			Path:   path,
			Detail: "manifest must be inside the source directory",
		}
	}

	deps, err := ReadManifest(path, rt.Family)
	if errors.Is(err, fs.ErrNotExist) {
		b.logger.Info("bundling source only", "reason", &BuildError{Reason: ManifestNotFound, Path: path})
		return "", nil, nil
	}
	if err != nil {
		return "", nil, &BuildError{Reason: DependencyInstallFailed, Path: path, Err: err}
	}
	if len(deps) == 0 {
		return "", nil, nil
	}
	return filepath.ToSlash(rel), deps, nil
}

func prepareStaging(dir string) (string, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "wetwire-asset-")
		if err != nil {
			return "", &BuildError{Reason: EnvironmentFailed, Err: err}
		}
		return tmp, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &BuildError{Reason: InvalidBuildSpec, Path: dir, Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", &BuildError{Reason: EnvironmentFailed, Path: abs, Err: err}
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", &BuildError{Reason: EnvironmentFailed, Path: abs, Err: err}
	}
	if len(entries) > 0 {
		return "", &BuildError{Reason: InvalidBuildSpec, Path: abs, Detail: "staging directory is not empty"}
	}
	return abs, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDetail {
		return s
	}
	return "..." + s[len(s)-maxDetail:]
}
