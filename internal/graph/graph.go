// Package graph holds the in-memory resource graph built by one synthesis
// pass: resource nodes keyed by logical ID, and the output bindings they
// export for downstream consumers.
//
// Nodes are declared through their resource kind:
//
//	g := graph.New()
//	node, err := graph.Function{Config: cfg, Artifact: art}.Declare(g, "AnalysisFn")
//	out, _ := g.Output("AnalysisFnArn") // Deferred{AnalysisFn, Arn}
//
// Output values are symbolic until a realization driver resolves them
// through a Resolver.
package graph

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateID is returned when a logical ID is already declared.
	ErrDuplicateID = errors.New("logical ID already declared")
	// ErrDuplicateOutput is returned when an output name is already registered.
	ErrDuplicateOutput = errors.New("output name already registered")
)

// Node is a declared resource. Nodes are never mutated after insertion.
type Node struct {
	LogicalID string
	Resource  Resource
}

// Kind returns the node's resource kind.
func (n Node) Kind() Kind {
	return n.Resource.Kind()
}

// Graph is the collection of declared resources and their output bindings.
// It is safe for concurrent use, but callers should serialize declarations:
// two concurrent declarations of the same logical ID keep whichever wins.
type Graph struct {
	mu          sync.RWMutex
	order       []string
	nodes       map[string]Node
	outputOrder []string
	outputs     map[string]OutputBinding
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]Node),
		outputs: make(map[string]OutputBinding),
	}
}

// insert adds a node and its outputs atomically. Either everything is
// registered or the graph is left unchanged.
func (g *Graph) insert(id string, r Resource, outputs []OutputBinding) (Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		return Node{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	seen := make(map[string]bool, len(outputs))
	for _, out := range outputs {
		if _, exists := g.outputs[out.Name]; exists || seen[out.Name] {
			return Node{}, fmt.Errorf("%w: %s", ErrDuplicateOutput, out.Name)
		}
		seen[out.Name] = true
	}

	node := Node{LogicalID: id, Resource: r}
	g.nodes[id] = node
	g.order = append(g.order, id)
	for _, out := range outputs {
		g.outputs[out.Name] = out
		g.outputOrder = append(g.outputOrder, out.Name)
	}
	return node, nil
}

// Node returns the node with the given logical ID.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Output returns the output binding with the given name.
func (g *Graph) Output(name string) (OutputBinding, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out, ok := g.outputs[name]
	return out, ok
}

// Outputs returns all output bindings in registration order.
func (g *Graph) Outputs() []OutputBinding {
	g.mu.RLock()
	defer g.mu.RUnlock()
	outs := make([]OutputBinding, 0, len(g.outputOrder))
	for _, name := range g.outputOrder {
		outs = append(outs, g.outputs[name])
	}
	return outs
}
