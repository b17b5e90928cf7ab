package graph

import (
	"io"
	"strings"

	"github.com/emicklei/dot"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// assetNode is the node name of the asset bucket parameter.
const assetNode = "AssetBucket"

// Renderer draws a resource graph.
type Renderer struct {
	// IncludeOutputs adds one node per output binding.
	IncludeOutputs bool

	// IncludeParameters adds the asset bucket parameter that function code
	// is read from.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByKind groups resources of the same kind.
	ClusterByKind bool
}

// Render draws g and writes it to w.
func (r *Renderer) Render(g *Graph, w io.Writer) error {
	graph := r.build(g)

	format := r.Format
	if format == "" {
		format = FormatDOT
	}

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// RenderString is a convenience method that returns the drawing as a string.
func (r *Renderer) RenderString(g *Graph) (string, error) {
	var sb strings.Builder
	if err := r.Render(g, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Renderer) build(g *Graph) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	nodes := g.Nodes()
	if r.ClusterByKind {
		r.addClusteredNodes(graph, nodes)
	} else {
		for _, n := range nodes {
			graph.Node(n.LogicalID).Label(nodeLabel(n))
		}
	}

	if r.IncludeParameters {
		var param *dot.Node
		for _, n := range nodes {
			if n.Kind() != KindFunction {
				continue
			}
			if param == nil {
				p := graph.Node(assetNode)
				p.Attr("shape", "ellipse")
				p.Attr("style", "dashed")
				p.Label(assetNode)
				param = &p
			}
			e := graph.Edge(graph.Node(n.LogicalID), *param)
			if f, ok := n.Resource.(Function); ok && f.Artifact != nil {
				e.Label(shortDigest(f.Artifact.Digest))
			}
		}
	}

	if r.IncludeOutputs {
		for _, out := range g.Outputs() {
			o := graph.Node("output:" + out.Name)
			o.Attr("shape", "ellipse")
			o.Label(out.Name)
			e := graph.Edge(graph.Node(out.Value.LogicalID), o)
			if out.Value.Attribute != AttrRef {
				e.Attr("color", "blue")
				e.Label(out.Value.Attribute)
			}
		}
	}

	return graph
}

// addClusteredNodes groups nodes of the same kind into one cluster when the
// kind has more than one node.
func (r *Renderer) addClusteredNodes(graph *dot.Graph, nodes []Node) {
	var kinds []Kind
	byKind := make(map[Kind][]Node)
	for _, n := range nodes {
		if _, ok := byKind[n.Kind()]; !ok {
			kinds = append(kinds, n.Kind())
		}
		byKind[n.Kind()] = append(byKind[n.Kind()], n)
	}

	for _, kind := range kinds {
		group := byKind[kind]
		if len(group) == 1 {
			graph.Node(group[0].LogicalID).Label(nodeLabel(group[0]))
			continue
		}
		cluster := graph.Subgraph("cluster_"+string(kind), dot.ClusterOption{})
		cluster.Attr("label", string(kind))
		cluster.Attr("style", "rounded")
		cluster.Attr("bgcolor", "lightyellow")
		for _, n := range group {
			cluster.Node(n.LogicalID).Label(nodeLabel(n))
		}
	}
}

// nodeLabel returns e.g. "AnalysisFn\n[function python3.11/x86_64]".
func nodeLabel(n Node) string {
	detail := string(n.Kind())
	if f, ok := n.Resource.(Function); ok && f.Artifact != nil {
		detail += " " + f.Artifact.Runtime + "/" + string(f.Artifact.Arch)
	}
	return n.LogicalID + "\\n[" + detail + "]"
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
