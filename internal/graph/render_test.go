package graph

import (
	"strings"
	"testing"
)

func renderGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	if _, err := testFunction().Declare(g, "AnalysisFn"); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := (Bucket{BucketName: "uploads"}).Declare(g, "Uploads"); err != nil {
		t.Fatalf("declare: %v", err)
	}
	return g
}

func TestRenderer_DOT(t *testing.T) {
	r := &Renderer{}
	output, err := r.RenderString(renderGraph(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "digraph") {
		t.Error("expected digraph declaration")
	}
	if !strings.Contains(output, "AnalysisFn") || !strings.Contains(output, "Uploads") {
		t.Error("expected both resource nodes")
	}
	if !strings.Contains(output, "python3.11/x86_64") {
		t.Error("expected runtime and architecture in function label")
	}
	if strings.Contains(output, "AssetBucket") {
		t.Error("parameters should be excluded by default")
	}
}

func TestRenderer_Outputs(t *testing.T) {
	r := &Renderer{IncludeOutputs: true}
	output, err := r.RenderString(renderGraph(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"AnalysisFnArn", "UploadsName", "UploadsArn"} {
		if !strings.Contains(output, name) {
			t.Errorf("expected output node %s", name)
		}
	}
	if !strings.Contains(output, "blue") {
		t.Error("expected blue color for attribute edges")
	}
}

func TestRenderer_Parameters(t *testing.T) {
	r := &Renderer{IncludeParameters: true}
	output, err := r.RenderString(renderGraph(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "AssetBucket") {
		t.Error("expected asset bucket parameter node")
	}
	if !strings.Contains(output, "dashed") {
		t.Error("expected dashed style for parameter node")
	}
	if !strings.Contains(output, "0123456789ab") {
		t.Error("expected artifact digest on the asset edge")
	}
}

func TestRenderer_Mermaid(t *testing.T) {
	r := &Renderer{Format: FormatMermaid}
	output, err := r.RenderString(renderGraph(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "flowchart") && !strings.Contains(output, "graph") {
		t.Error("expected mermaid graph declaration")
	}
}

func TestRenderer_ClusterByKind(t *testing.T) {
	g := New()
	for _, id := range []string{"Raw", "Processed"} {
		if _, err := (Bucket{}).Declare(g, id); err != nil {
			t.Fatalf("declare: %v", err)
		}
	}
	if _, err := testFunction().Declare(g, "AnalysisFn"); err != nil {
		t.Fatalf("declare: %v", err)
	}

	r := &Renderer{ClusterByKind: true}
	output, err := r.RenderString(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "cluster_bucket") {
		t.Error("expected a cluster for buckets")
	}
	if strings.Contains(output, "cluster_function") {
		t.Error("a single function should not be clustered")
	}
}

func TestRenderer_EmptyGraph(t *testing.T) {
	r := &Renderer{}
	output, err := r.RenderString(New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "digraph") {
		t.Error("expected digraph declaration for empty graph")
	}
}
