package intrinsics

import (
	"encoding/json"
)

// BasicExecutionPolicy is the managed policy that lets a function write its logs.
const BasicExecutionPolicy = "arn:${AWS::Partition}:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

// PolicyDocument represents an IAM policy document.
type PolicyDocument struct {
	Version   string `json:"Version,omitempty"`
	Statement []any  `json:"Statement"`
}

// PolicyStatement represents an IAM policy statement.
type PolicyStatement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Principal any    `json:"Principal,omitempty"`
	Action    any    `json:"Action,omitempty"`
	Resource  any    `json:"Resource,omitempty"`
}

// ServicePrincipal represents a service principal (e.g., lambda.amazonaws.com).
// Serializes to {"Service": ...} format.
type ServicePrincipal []any

// MarshalJSON serializes to {"Service": ...} format.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"Service": p[0]})
	}
	return json.Marshal(map[string]any{"Service": []any(p)})
}

// AssumeRolePolicy returns the trust policy allowing the given service to
// assume a role.
func AssumeRolePolicy(service string) PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []any{
			PolicyStatement{
				Effect:    "Allow",
				Principal: ServicePrincipal{service},
				Action:    "sts:AssumeRole",
			},
		},
	}
}
