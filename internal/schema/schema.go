// Package schema checks rendered templates offline against the property
// schemas of the resource types the renderer emits.
package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/bundle"
)

// Options configures schema validation.
type Options struct {
	// Strict reports properties the schema does not know as warnings.
	Strict bool
}

// Issue is a single schema violation.
type Issue struct {
	Resource string
	Property string
	Message  string
}

func (i Issue) String() string {
	if i.Property == "" {
		return fmt.Sprintf("%s: %s", i.Resource, i.Message)
	}
	return fmt.Sprintf("%s.%s: %s", i.Resource, i.Property, i.Message)
}

// Result contains schema validation results.
type Result struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

// ResourceSchema defines the schema for a resource type.
type ResourceSchema struct {
	Required   []string
	Properties map[string]PropertySchema
}

// PropertySchema defines the schema for a property.
type PropertySchema struct {
	Type          string
	AllowedValues []string
	// Min and Max bound Integer values when non-zero.
	Min, Max float64
}

var resourceSchemas = map[string]ResourceSchema{
	"AWS::Lambda::Function": {
		Required: []string{"Code", "Role"},
		Properties: map[string]PropertySchema{
			"Architectures": {Type: "List"},
			"Code":          {Type: "Map"},
			"Description":   {Type: "String"},
			"Environment":   {Type: "Map"},
			"Handler":       {Type: "String"},
			"MemorySize":    {Type: "Integer", Min: 128, Max: 10240},
			"Role":          {Type: "String"},
			"Runtime":       {Type: "String", AllowedValues: bundle.Runtimes()},
			"Timeout":       {Type: "Integer", Min: 1, Max: 900},
		},
	},
	"AWS::IAM::Role": {
		Required: []string{"AssumeRolePolicyDocument"},
		Properties: map[string]PropertySchema{
			"AssumeRolePolicyDocument": {Type: "Json"},
			"ManagedPolicyArns":        {Type: "List"},
		},
	},
	"AWS::S3::Bucket": {
		Properties: map[string]PropertySchema{
			"BucketName":              {Type: "String"},
			"VersioningConfiguration": {Type: "Map"},
		},
	},
}

// ValidateTemplate validates every resource of t. Resources are visited in
// name order so results are stable.
func ValidateTemplate(t *wetwire.Template, opts Options) *Result {
	result := &Result{}
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		errs, warns := validateResource(name, t.Resources[name], opts)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}
	result.Valid = len(result.Errors) == 0
	return result
}

func validateResource(name string, resource wetwire.ResourceDef, opts Options) (errs, warns []Issue) {
	if !isValidResourceType(resource.Type) {
		return []Issue{{Resource: name, Property: "Type", Message: fmt.Sprintf("invalid resource type format: %s", resource.Type)}}, nil
	}
	schema, ok := resourceSchemas[resource.Type]
	if !ok {
		return nil, []Issue{{Resource: name, Property: "Type", Message: fmt.Sprintf("unknown resource type: %s (schema not available)", resource.Type)}}
	}

	for _, required := range schema.Required {
		if _, exists := resource.Properties[required]; !exists {
			errs = append(errs, Issue{Resource: name, Property: required, Message: "missing required property"})
		}
	}

	props := make([]string, 0, len(resource.Properties))
	for p := range resource.Properties {
		props = append(props, p)
	}
	sort.Strings(props)
	for _, p := range props {
		ps, ok := schema.Properties[p]
		if !ok {
			if opts.Strict {
				warns = append(warns, Issue{Resource: name, Property: p, Message: "unknown property"})
			}
			continue
		}
		errs = append(errs, validateProperty(name, p, resource.Properties[p], ps)...)
	}
	return errs, warns
}

// isValidResourceType checks for the AWS::Service::Resource or Custom::*
// form.
func isValidResourceType(resourceType string) bool {
	if strings.HasPrefix(resourceType, "Custom::") {
		return true
	}
	parts := strings.Split(resourceType, "::")
	return len(parts) == 3 && parts[0] == "AWS"
}

func validateProperty(resource, property string, value any, schema PropertySchema) []Issue {
	if isIntrinsic(value) {
		return nil
	}
	if !isValidType(value, schema.Type) {
		return []Issue{{Resource: resource, Property: property, Message: fmt.Sprintf("expected type %s", schema.Type)}}
	}

	var issues []Issue
	if s, ok := value.(string); ok && len(schema.AllowedValues) > 0 && !slices.Contains(schema.AllowedValues, s) {
		issues = append(issues, Issue{Resource: resource, Property: property, Message: fmt.Sprintf("value %q not in allowed values: %v", s, schema.AllowedValues)})
	}
	if n, ok := number(value); ok {
		if schema.Min != 0 && n < schema.Min {
			issues = append(issues, Issue{Resource: resource, Property: property, Message: fmt.Sprintf("%v is below the minimum %v", n, schema.Min)})
		}
		if schema.Max != 0 && n > schema.Max {
			issues = append(issues, Issue{Resource: resource, Property: property, Message: fmt.Sprintf("%v exceeds the maximum %v", n, schema.Max)})
		}
	}
	return issues
}

// isIntrinsic reports whether value is an intrinsic function call, which is
// resolved at deploy time and always accepted.
func isIntrinsic(value any) bool {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for key := range m {
		return strings.HasPrefix(key, "Fn::") || key == "Ref"
	}
	return false
}

func isValidType(value any, expectedType string) bool {
	switch expectedType {
	case "String":
		_, ok := value.(string)
		return ok
	case "Integer":
		_, ok := number(value)
		return ok
	case "Boolean":
		_, ok := value.(bool)
		return ok
	case "List":
		_, ok := value.([]any)
		return ok
	case "Map":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
