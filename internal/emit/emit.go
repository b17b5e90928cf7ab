// Package emit declares resources into a resource graph after validating
// their configuration locally.
//
// Emission is deterministic and only mutates the in-memory graph; nothing
// here talks to a live platform.
package emit

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/graph"
)

// Reason classifies a DefineError.
type Reason string

const (
	// DuplicateResourceId means the logical ID (or one of its output names)
	// is already declared in the graph.
	DuplicateResourceId Reason = "DuplicateResourceId"
	// InvalidConfig means the resource configuration failed local validation.
	InvalidConfig Reason = "InvalidConfig"
)

// DefineError is returned when a resource cannot be declared.
type DefineError struct {
	Reason    Reason
	LogicalID string
	Detail    string
	Err       error
}

func (e *DefineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Reason, e.LogicalID)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DefineError) Unwrap() error {
	return e.Err
}

// Is matches another *DefineError by Reason.
func (e *DefineError) Is(target error) bool {
	t, ok := target.(*DefineError)
	return ok && t.Reason == e.Reason
}

// IsReason reports whether err is a DefineError with the given reason.
func IsReason(err error, reason Reason) bool {
	var de *DefineError
	return errors.As(err, &de) && de.Reason == reason
}

// logicalIDPattern matches template logical IDs: alphanumeric, leading letter.
var logicalIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// DefineFunction declares a function built from artifact into g and
// registers its "<logicalID>Arn" output. The config is copied; later changes
// to cfg do not affect the graph.
func DefineFunction(g *graph.Graph, logicalID string, artifact *bundle.Artifact, cfg graph.FunctionConfig) (graph.Node, error) {
	if err := validateID(logicalID); err != nil {
		return graph.Node{}, err
	}
	if artifact == nil {
		return graph.Node{}, invalid(logicalID, "artifact is required")
	}
	if err := ValidateFunctionConfig(cfg); err != nil {
		return graph.Node{}, &DefineError{Reason: InvalidConfig, LogicalID: logicalID, Err: err}
	}
	return declare(g, logicalID, graph.Function{Config: cfg, Artifact: artifact})
}

// DefineBucket declares a storage bucket into g and registers its
// "<logicalID>Name" and "<logicalID>Arn" outputs.
func DefineBucket(g *graph.Graph, logicalID string, b graph.Bucket) (graph.Node, error) {
	if err := validateID(logicalID); err != nil {
		return graph.Node{}, err
	}
	return declare(g, logicalID, b)
}

// ValidateFunctionConfig checks a function configuration locally. Only
// positivity of timeout and memory is enforced here; platform ranges are
// reported by the schema check during validate.
func ValidateFunctionConfig(cfg graph.FunctionConfig) error {
	var errs []error
	if cfg.Handler == "" {
		errs = append(errs, errors.New("handler is required"))
	}
	if cfg.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %d", cfg.TimeoutSeconds))
	}
	if cfg.MemoryMB <= 0 {
		errs = append(errs, fmt.Errorf("memory must be positive, got %d", cfg.MemoryMB))
	}
	for key := range cfg.Environment {
		if key == "" {
			errs = append(errs, errors.New("environment variable name must not be empty"))
		}
	}
	return errors.Join(errs...)
}

func declare(g *graph.Graph, logicalID string, r graph.Resource) (graph.Node, error) {
	node, err := r.Declare(g, logicalID)
	switch {
	case errors.Is(err, graph.ErrDuplicateID), errors.Is(err, graph.ErrDuplicateOutput):
		return graph.Node{}, &DefineError{Reason: DuplicateResourceId, LogicalID: logicalID, Err: err}
	case err != nil:
		return graph.Node{}, &DefineError{Reason: InvalidConfig, LogicalID: logicalID, Err: err}
	}
	return node, nil
}

func validateID(id string) error {
	if !logicalIDPattern.MatchString(id) {
		return invalid(id, "logical ID must be alphanumeric and start with a letter")
	}
	return nil
}

func invalid(id, detail string) error {
	return &DefineError{Reason: InvalidConfig, LogicalID: id, Detail: detail}
}
