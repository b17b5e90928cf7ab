// Package template renders a resource graph as a CloudFormation template.
package template

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/graph"
	"github.com/lex00/wetwire-lambda-go/internal/serialize"
	"github.com/lex00/wetwire-lambda-go/intrinsics"
)

// Resource types emitted by the renderer.
const (
	TypeFunction = "AWS::Lambda::Function"
	TypeRole     = "AWS::IAM::Role"
	TypeBucket   = "AWS::S3::Bucket"
)

// AssetBucketParameter is the parameter naming the bucket artifact archives
// are uploaded to.
const AssetBucketParameter = "AssetBucket"

// RoleSuffix is appended to a function's logical ID to name its execution role.
const RoleSuffix = "ServiceRole"

// Options control rendering.
type Options struct {
	Description string
	// AssetBucket is the default of the asset bucket parameter.
	AssetBucket string
	// ExportOutputs adds a "<stack>-<output>" export to every output.
	ExportOutputs bool
}

type functionProperties struct {
	Description   string               `json:"Description,omitempty"`
	Handler       string               `json:"Handler"`
	Runtime       string               `json:"Runtime"`
	Architectures []string             `json:"Architectures,omitempty"`
	Code          functionCode         `json:"Code"`
	Role          any                  `json:"Role"`
	Timeout       int                  `json:"Timeout"`
	MemorySize    int                  `json:"MemorySize"`
	Environment   *functionEnvironment `json:"Environment,omitempty"`
}

type functionCode struct {
	S3Bucket any    `json:"S3Bucket"`
	S3Key    string `json:"S3Key"`
}

type functionEnvironment struct {
	Variables map[string]string `json:"Variables"`
}

type roleProperties struct {
	AssumeRolePolicyDocument intrinsics.PolicyDocument `json:"AssumeRolePolicyDocument"`
	ManagedPolicyArns        []any                     `json:"ManagedPolicyArns,omitempty"`
}

type bucketProperties struct {
	BucketName              string                `json:"BucketName,omitempty"`
	VersioningConfiguration *versioningProperties `json:"VersioningConfiguration,omitempty"`
}

type versioningProperties struct {
	Status string `json:"Status"`
}

// Render builds the template of g. Each function also gets an execution
// role named "<logicalID>ServiceRole" and reads its code from the asset
// bucket parameter under the artifact's content-addressed key.
func Render(g *graph.Graph, opts Options) (*wetwire.Template, error) {
	t := &wetwire.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              opts.Description,
		Resources:                make(map[string]wetwire.ResourceDef),
	}

	for _, node := range g.Nodes() {
		var err error
		switch r := node.Resource.(type) {
		case graph.Function:
			err = renderFunction(t, node.LogicalID, r)
		case graph.Bucket:
			err = renderBucket(t, node.LogicalID, r)
		default:
			err = fmt.Errorf("unsupported resource kind %q", node.Kind())
		}
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", node.LogicalID, err)
		}
	}

	if _, ok := t.Parameters[AssetBucketParameter]; ok && opts.AssetBucket != "" {
		p := t.Parameters[AssetBucketParameter]
		p.Default = opts.AssetBucket
		t.Parameters[AssetBucketParameter] = p
	}

	outputs := g.Outputs()
	if len(outputs) > 0 {
		t.Outputs = make(map[string]wetwire.Output, len(outputs))
	}
	for _, out := range outputs {
		value, err := intrinsics.Plain(out.Value)
		if err != nil {
			return nil, fmt.Errorf("rendering output %s: %w", out.Name, err)
		}
		o := wetwire.Output{Description: out.Description, Value: value}
		if opts.ExportOutputs {
			name, err := intrinsics.Plain(intrinsics.Join{Delimiter: "-", Values: []any{intrinsics.AWS_STACK_NAME, out.Name}})
			if err != nil {
				return nil, err
			}
			o.Export = &wetwire.Export{Name: name}
		}
		t.Outputs[out.Name] = o
	}

	return t, nil
}

func renderFunction(t *wetwire.Template, id string, fn graph.Function) error {
	if fn.Artifact == nil {
		return fmt.Errorf("function has no artifact")
	}
	roleID := id + RoleSuffix
	if err := checkFree(t, id); err != nil {
		return err
	}
	if _, exists := t.Resources[roleID]; exists {
		return fmt.Errorf("execution role %s collides with a declared resource", roleID)
	}

	if t.Parameters == nil {
		t.Parameters = make(map[string]wetwire.Parameter)
	}
	t.Parameters[AssetBucketParameter] = wetwire.Parameter{
		Type:        "String",
		Description: "Bucket holding the function code archives",
	}

	props := functionProperties{
		Description:   fn.Config.Description,
		Handler:       fn.Config.Handler,
		Runtime:       fn.Artifact.Runtime,
		Architectures: []string{string(fn.Artifact.Arch)},
		Code: functionCode{
			S3Bucket: intrinsics.Ref{LogicalName: AssetBucketParameter},
			S3Key:    fn.Artifact.Key(),
		},
		Role:       intrinsics.GetAtt{LogicalName: roleID, Attribute: "Arn"},
		Timeout:    fn.Config.TimeoutSeconds,
		MemorySize: fn.Config.MemoryMB,
	}
	if len(fn.Config.Environment) > 0 {
		props.Environment = &functionEnvironment{Variables: fn.Config.Environment}
	}
	fnProps, err := serialize.Properties(props)
	if err != nil {
		return err
	}

	roleProps, err := serialize.Properties(roleProperties{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("lambda.amazonaws.com"),
		ManagedPolicyArns:        []any{intrinsics.Sub{String: intrinsics.BasicExecutionPolicy}},
	})
	if err != nil {
		return err
	}

	t.Resources[roleID] = wetwire.ResourceDef{Type: TypeRole, Properties: roleProps}
	t.Resources[id] = wetwire.ResourceDef{
		Type:       TypeFunction,
		Properties: fnProps,
		Metadata: map[string]any{
			"wetwire:asset": map[string]any{
				"digest":       fn.Artifact.Digest,
				"key":          fn.Artifact.Key(),
				"runtime":      fn.Artifact.Runtime,
				"architecture": string(fn.Artifact.Arch),
			},
		},
	}
	return nil
}

func renderBucket(t *wetwire.Template, id string, b graph.Bucket) error {
	if err := checkFree(t, id); err != nil {
		return err
	}
	props := bucketProperties{BucketName: b.BucketName}
	if b.Versioned {
		props.VersioningConfiguration = &versioningProperties{Status: "Enabled"}
	}
	p, err := serialize.Properties(props)
	if err != nil {
		return err
	}
	if len(p) == 0 {
		p = nil
	}
	t.Resources[id] = wetwire.ResourceDef{Type: TypeBucket, Properties: p}
	return nil
}

// checkFree fails when id is already taken, which happens when it equals the
// execution role of a function rendered earlier.
func checkFree(t *wetwire.Template, id string) error {
	if _, exists := t.Resources[id]; exists {
		return fmt.Errorf("logical ID %s collides with a generated execution role", id)
	}
	return nil
}

// ToJSON serializes the template to JSON.
func ToJSON(t *wetwire.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *wetwire.Template) ([]byte, error) {
	return yaml.Marshal(t)
}

// Parse reads a template from JSON or YAML.
func Parse(data []byte) (*wetwire.Template, error) {
	var t wetwire.Template
	if err := json.Unmarshal(data, &t); err == nil {
		return &t, nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	// Round-trip through JSON so YAML templates decode to the same shapes.
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if err := json.Unmarshal(js, &t); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &t, nil
}
