// Package stack reads stack files: YAML documents declaring the functions
// and buckets of one deployment.
//
//	description: Food analysis API
//	functions:
//	  AnalysisFn:
//	    source: ./food-analysis-lambda
//	    runtime: python3.11
//	    handler: handler.lambda_handler
//	    timeout: 30
//	    memory: 1024
//	    secrets:
//	      API_KEY: ANTHROPIC_API_KEY
//	buckets:
//	  Uploads:
//	    versioned: true
package stack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/template"
	"github.com/lex00/wetwire-lambda-go/internal/graph"
)

// DefaultFile is the stack file name used when none is given.
const DefaultFile = "stack.yaml"

var logicalID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// Stack is a parsed stack file.
type Stack struct {
	Description string                  `yaml:"description,omitempty"`
	Functions   map[string]FunctionSpec `yaml:"functions,omitempty"`
	Buckets     map[string]BucketSpec   `yaml:"buckets,omitempty"`

	// Dir is the directory relative paths are resolved against.
	Dir string `yaml:"-"`
}

// FunctionSpec declares one function.
type FunctionSpec struct {
	// Source is the source directory, relative to the stack file.
	Source  string `yaml:"source"`
	Runtime string `yaml:"runtime"`
	// Architecture defaults to the configured architecture.
	Architecture string `yaml:"architecture,omitempty"`
	// Manifest is the dependency manifest relative to Source; empty uses the
	// runtime's default manifest name.
	Manifest    string            `yaml:"manifest,omitempty"`
	Image       string            `yaml:"image,omitempty"`
	Handler     string            `yaml:"handler"`
	Timeout     int               `yaml:"timeout"`
	Memory      int               `yaml:"memory"`
	Description string            `yaml:"description,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	// Secrets maps a function environment variable to the name of an
	// externally supplied value, read at synthesis time.
	Secrets map[string]string `yaml:"secrets,omitempty"`
}

// BucketSpec declares one storage bucket.
type BucketSpec struct {
	Name      string `yaml:"name,omitempty"`
	Versioned bool   `yaml:"versioned,omitempty"`
}

// Load reads and validates a stack file.
func Load(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stack: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a stack document. Unknown fields are errors.
func Parse(data []byte, dir string) (*Stack, error) {
	var s Stack
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing stack: %w", err)
	}
	s.Dir = dir
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the structure of the stack. Resource limits are checked
// when the resources are defined.
func (s *Stack) Validate() error {
	var errs []error
	if len(s.Functions) == 0 && len(s.Buckets) == 0 {
		errs = append(errs, errors.New("stack declares no resources"))
	}
	for _, id := range s.FunctionIDs() {
		fn := s.Functions[id]
		if !logicalID.MatchString(id) {
			errs = append(errs, fmt.Errorf("function %q: logical ID must be alphanumeric and start with a letter", id))
		}
		if _, dup := s.Buckets[id]; dup {
			errs = append(errs, fmt.Errorf("function %q: logical ID also used by a bucket", id))
		}
		if fn.Source == "" {
			errs = append(errs, fmt.Errorf("function %q: source is required", id))
		}
		if fn.Runtime == "" {
			errs = append(errs, fmt.Errorf("function %q: runtime is required", id))
		} else if _, ok := bundle.LookupRuntime(fn.Runtime); !ok {
			errs = append(errs, fmt.Errorf("function %q: unsupported runtime %q", id, fn.Runtime))
		}
		if fn.Architecture != "" {
			if _, err := bundle.ParseArch(fn.Architecture); err != nil {
				errs = append(errs, fmt.Errorf("function %q: %w", id, err))
			}
		}
		if fn.Handler == "" {
			errs = append(errs, fmt.Errorf("function %q: handler is required", id))
		}
		for name := range fn.Secrets {
			if _, clash := fn.Environment[name]; clash {
				errs = append(errs, fmt.Errorf("function %q: %s is both an environment variable and a secret", id, name))
			}
		}
		role := id + template.RoleSuffix
		if _, clash := s.Functions[role]; clash {
			errs = append(errs, fmt.Errorf("function %q: logical ID %s is reserved for the execution role of %s", role, role, id))
		}
		if _, clash := s.Buckets[role]; clash {
			errs = append(errs, fmt.Errorf("bucket %q: logical ID %s is reserved for the execution role of %s", role, role, id))
		}
	}
	for _, id := range s.BucketIDs() {
		if !logicalID.MatchString(id) {
			errs = append(errs, fmt.Errorf("bucket %q: logical ID must be alphanumeric and start with a letter", id))
		}
	}
	return errors.Join(errs...)
}

// FunctionIDs returns the function logical IDs, sorted.
func (s *Stack) FunctionIDs() []string {
	return slices.Sorted(maps.Keys(s.Functions))
}

// BucketIDs returns the bucket logical IDs, sorted.
func (s *Stack) BucketIDs() []string {
	return slices.Sorted(maps.Keys(s.Buckets))
}

// SourceDir returns the absolute source directory of a function.
func (s *Stack) SourceDir(fn FunctionSpec) string {
	if filepath.IsAbs(fn.Source) {
		return filepath.Clean(fn.Source)
	}
	return filepath.Join(s.Dir, fn.Source)
}

// SourceDirs returns the source directories of all functions, sorted by
// function ID.
func (s *Stack) SourceDirs() []string {
	dirs := make([]string, 0, len(s.Functions))
	for _, id := range s.FunctionIDs() {
		dirs = append(dirs, s.SourceDir(s.Functions[id]))
	}
	return dirs
}

// BuildSpec returns the bundling input of a function. defaultArch applies
// when the function names no architecture.
func (s *Stack) BuildSpec(fn FunctionSpec, defaultArch bundle.Arch) bundle.BuildSpec {
	arch := bundle.Arch(fn.Architecture)
	if arch == "" {
		arch = defaultArch
	}
	return bundle.BuildSpec{
		SourceDir:    s.SourceDir(fn),
		Runtime:      fn.Runtime,
		ManifestPath: fn.Manifest,
		Image:        fn.Image,
		Arch:         arch,
	}
}

// Config returns the function configuration. Secrets are read through
// lookup and forwarded verbatim; an absent value becomes "".
func (fn FunctionSpec) Config(lookup config.Lookup) graph.FunctionConfig {
	env := make(map[string]string, len(fn.Environment)+len(fn.Secrets))
	maps.Copy(env, fn.Environment)
	for name, source := range fn.Secrets {
		env[name] = lookup.Value(source)
	}
	return graph.FunctionConfig{
		Handler:        fn.Handler,
		Environment:    env,
		TimeoutSeconds: fn.Timeout,
		MemoryMB:       fn.Memory,
		Description:    fn.Description,
	}
}

// SecretSources returns the external value names the function reads, sorted.
func (fn FunctionSpec) SecretSources() []string {
	sources := make([]string, 0, len(fn.Secrets))
	for _, source := range fn.Secrets {
		sources = append(sources, source)
	}
	slices.Sort(sources)
	return slices.Compact(sources)
}

// Bucket returns the graph resource of a bucket.
func (b BucketSpec) Bucket() graph.Bucket {
	return graph.Bucket{BucketName: b.Name, Versioned: b.Versioned}
}
