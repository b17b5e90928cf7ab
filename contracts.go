// Package wetwire_lambda synthesizes deployable function stacks from declarative
// stack definitions.
//
// A stack names one or more functions (source tree, runtime, handler, limits)
// and optional storage buckets:
//
//	functions:
//	  AnalysisFn:
//	    source: ./food-analysis-lambda
//	    runtime: python3.11
//	    handler: handler.lambda_handler
//	    timeout: 30
//	    memory: 1024
//
// The wetwire-lambda CLI bundles every function inside an architecture-pinned
// build container, declares the resources into an in-memory graph and renders
// that graph as a CloudFormation template with one output per function ARN.
package wetwire_lambda

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter   `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
	Metadata   map[string]any `json:"Metadata,omitempty" yaml:"Metadata,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type        string `json:"Type" yaml:"Type"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default     any    `json:"Default,omitempty" yaml:"Default,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string  `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any     `json:"Value" yaml:"Value"`
	Export      *Export `json:"Export,omitempty" yaml:"Export,omitempty"`
}

// Export names a cross-stack output export.
type Export struct {
	Name any `json:"Name" yaml:"Name"`
}

// ArtifactSummary describes one bundled function artifact.
type ArtifactSummary struct {
	Function     string   `json:"function"`
	Runtime      string   `json:"runtime"`
	Architecture string   `json:"architecture"`
	Path         string   `json:"path"`
	Digest       string   `json:"digest"`
	Key          string   `json:"key"`
	Files        int      `json:"files"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// BuildResult is the JSON output from `wetwire-lambda synth`.
type BuildResult struct {
	Success   bool              `json:"success"`
	Template  Template          `json:"template,omitempty"`
	Resources []string          `json:"resources,omitempty"`
	Outputs   []string          `json:"outputs,omitempty"`
	Artifacts []ArtifactSummary `json:"artifacts,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
}

// ValidateResult is the JSON output from `wetwire-lambda validate`.
type ValidateResult struct {
	Success   bool     `json:"success"`
	Resources int      `json:"resources"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ListResult is the JSON output from `wetwire-lambda list`.
type ListResult struct {
	Resources []ListResource `json:"resources"`
	Outputs   []ListOutput   `json:"outputs,omitempty"`
}

// ListResource is a single resource in the list output.
type ListResource struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// ListOutput is a single output binding in the list output.
type ListOutput struct {
	Name      string `json:"name"`
	Resource  string `json:"resource"`
	Attribute string `json:"attribute"`
	// Value is set when provisioned values were supplied.
	Value string `json:"value,omitempty"`
}

// TemplateDiff lists resource-level differences between two templates.
type TemplateDiff struct {
	Added    []DiffEntry `json:"added,omitempty"`
	Removed  []DiffEntry `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
	Outputs  []string    `json:"outputs,omitempty"`
}

// DiffEntry is one changed resource.
type DiffEntry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type"`
	Changes  []string `json:"changes,omitempty"`
}

// DiffSummary counts the changes in a TemplateDiff.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Outputs  int `json:"outputs"`
	Total    int `json:"total"`
}

// IsEmpty reports whether the diff contains no changes.
func (s DiffSummary) IsEmpty() bool {
	return s.Total == 0
}
