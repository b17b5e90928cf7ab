// Package intrinsics provides the CloudFormation intrinsic functions used when
// rendering a resource graph into a template.
//
// The core intrinsic types are re-exported from cloudformation-schema-go:
//
//	Ref{"AssetBucket"}           → {"Ref": "AssetBucket"}
//	GetAtt{"AnalysisFn", "Arn"}  → {"Fn::GetAtt": ["AnalysisFn", "Arn"]}
//	Sub{"${AWS::StackName}-fn"}  → {"Fn::Sub": "${AWS::StackName}-fn"}
package intrinsics

import (
	"encoding/json"

	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)

// Plain converts a value built from intrinsics and structs into the generic
// map/slice form used in templates, so that YAML output carries the same
// shape as JSON output.
func Plain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
