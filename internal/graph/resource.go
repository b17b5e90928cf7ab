package graph

import (
	"maps"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
)

// Kind tags the variant of a Resource.
type Kind string

const (
	KindFunction Kind = "function"
	KindBucket   Kind = "bucket"
)

// Resource is a declarable resource kind. Each kind knows which outputs it
// exports and inserts itself into a graph under a logical ID.
type Resource interface {
	Kind() Kind
	// Outputs returns the bindings exported when declared as logicalID.
	Outputs(logicalID string) []OutputBinding
	// Declare inserts the resource and its outputs into g.
	Declare(g *Graph, logicalID string) (Node, error)
}

// FunctionConfig is the declarative configuration of a compute function.
type FunctionConfig struct {
	// Handler is the entry point in "module.function" form. It is resolved
	// by the platform at deploy time, not checked against the artifact.
	Handler        string
	Environment    map[string]string
	TimeoutSeconds int
	MemoryMB       int
	Description    string
}

// Clone returns a deep copy of the config.
func (c FunctionConfig) Clone() FunctionConfig {
	c.Environment = maps.Clone(c.Environment)
	if c.Environment == nil {
		c.Environment = map[string]string{}
	}
	return c
}

// Function is a compute function packaged from a bundled artifact.
type Function struct {
	Config   FunctionConfig
	Artifact *bundle.Artifact
}

func (Function) Kind() Kind { return KindFunction }

func (Function) Outputs(id string) []OutputBinding {
	return []OutputBinding{{
		Name:        id + "Arn",
		Value:       Deferred{LogicalID: id, Attribute: AttrArn},
		Description: "Invocation identifier of " + id,
	}}
}

func (f Function) Declare(g *Graph, id string) (Node, error) {
	f.Config = f.Config.Clone()
	return g.insert(id, f, f.Outputs(id))
}

// Bucket is an object storage bucket.
type Bucket struct {
	// BucketName is the physical name; empty lets the platform generate one.
	BucketName string
	Versioned  bool
}

func (Bucket) Kind() Kind { return KindBucket }

func (Bucket) Outputs(id string) []OutputBinding {
	return []OutputBinding{
		{
			Name:        id + "Name",
			Value:       Deferred{LogicalID: id, Attribute: AttrRef},
			Description: "Name of " + id,
		},
		{
			Name:        id + "Arn",
			Value:       Deferred{LogicalID: id, Attribute: AttrArn},
			Description: "ARN of " + id,
		},
	}
}

func (b Bucket) Declare(g *Graph, id string) (Node, error) {
	return g.insert(id, b, b.Outputs(id))
}
