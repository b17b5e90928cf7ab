package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lex00/wetwire-lambda-go/intrinsics"
)

// Attributes exported by the resource kinds.
const (
	// AttrArn is the platform-assigned invocation identifier.
	AttrArn = "Arn"
	// AttrRef is the resource's primary identifier (its physical name).
	AttrRef = ""
)

// ErrUnresolved is returned when a Resolver has no value for a Deferred.
var ErrUnresolved = errors.New("deferred value not resolved")

// Deferred is a typed placeholder for a resource attribute that only exists
// after the resource is provisioned.
type Deferred struct {
	LogicalID string `json:"resource" yaml:"resource"`
	// Attribute is the attribute name; AttrRef names the primary identifier.
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// String returns "LogicalID.Attribute", or "LogicalID" for AttrRef.
func (d Deferred) String() string {
	if d.Attribute == AttrRef {
		return d.LogicalID
	}
	return d.LogicalID + "." + d.Attribute
}

// Intrinsic returns the template expression that yields the value once the
// template is realized.
func (d Deferred) Intrinsic() any {
	if d.Attribute == AttrRef {
		return intrinsics.Ref{LogicalName: d.LogicalID}
	}
	return intrinsics.GetAtt{LogicalName: d.LogicalID, Attribute: d.Attribute}
}

// MarshalJSON encodes the deferred value as its template expression.
func (d Deferred) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Intrinsic())
}

// OutputBinding is a named, graph-scoped reference to a resource attribute.
type OutputBinding struct {
	Name        string
	Value       Deferred
	Description string
}

// Resolver resolves deferred values to the concrete values assigned during
// realization.
type Resolver interface {
	Resolve(d Deferred) (string, error)
}

// MapResolver resolves deferred values from a map keyed by Deferred.String().
type MapResolver map[string]string

// Resolve implements Resolver.
func (m MapResolver) Resolve(d Deferred) (string, error) {
	v, ok := m[d.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, d)
	}
	return v, nil
}

// ResolveOutputs resolves every output binding of the graph. It fails on the
// first binding the resolver cannot resolve.
func (g *Graph) ResolveOutputs(r Resolver) (map[string]string, error) {
	resolved := make(map[string]string)
	for _, out := range g.Outputs() {
		v, err := r.Resolve(out.Value)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", out.Name, err)
		}
		resolved[out.Name] = v
	}
	return resolved, nil
}
