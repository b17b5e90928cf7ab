package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
)

func testFunction() Function {
	return Function{
		Config: FunctionConfig{
			Handler:        "handler.lambda_handler",
			Environment:    map[string]string{"API_KEY": ""},
			TimeoutSeconds: 30,
			MemoryMB:       1024,
			Description:    "Analyses food images",
		},
		Artifact: &bundle.Artifact{RootPath: "/tmp/stage", Digest: "0123456789abcdef0123", Runtime: "python3.11", Arch: bundle.ArchX86_64},
	}
}

func TestFunctionDeclare(t *testing.T) {
	g := New()
	node, err := testFunction().Declare(g, "AnalysisFn")
	require.NoError(t, err)

	assert.Equal(t, "AnalysisFn", node.LogicalID)
	assert.Equal(t, KindFunction, node.Kind())
	assert.Equal(t, 1, g.Len())

	out, ok := g.Output("AnalysisFnArn")
	require.True(t, ok)
	assert.Equal(t, Deferred{LogicalID: "AnalysisFn", Attribute: AttrArn}, out.Value)
}

func TestFunctionDeclare_CopiesEnvironment(t *testing.T) {
	g := New()
	fn := testFunction()
	_, err := fn.Declare(g, "AnalysisFn")
	require.NoError(t, err)

	fn.Config.Environment["API_KEY"] = "changed"
	node, _ := g.Node("AnalysisFn")
	assert.Equal(t, "", node.Resource.(Function).Config.Environment["API_KEY"])
}

func TestDeclare_DuplicateKeepsFirst(t *testing.T) {
	g := New()
	_, err := testFunction().Declare(g, "AnalysisFn")
	require.NoError(t, err)

	_, err = Bucket{BucketName: "other"}.Declare(g, "AnalysisFn")
	require.ErrorIs(t, err, ErrDuplicateID)

	node, _ := g.Node("AnalysisFn")
	assert.Equal(t, KindFunction, node.Kind())
	assert.Equal(t, 1, g.Len())
	assert.Len(t, g.Outputs(), 1)
}

func TestDeclare_DuplicateOutputLeavesGraphUnchanged(t *testing.T) {
	g := New()
	_, err := Bucket{}.Declare(g, "Data")
	require.NoError(t, err)

	// "DataArn" is already exported by the bucket.
	_, err = fakeResource{outputs: []string{"DataArn"}}.Declare(g, "Other")
	require.ErrorIs(t, err, ErrDuplicateOutput)
	_, ok := g.Node("Other")
	assert.False(t, ok)
	assert.Len(t, g.Outputs(), 2)
}

func TestNodesKeepDeclarationOrder(t *testing.T) {
	g := New()
	for _, id := range []string{"Zeta", "Alpha", "Mid"} {
		_, err := Bucket{}.Declare(g, id)
		require.NoError(t, err)
	}
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.LogicalID)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, ids)

	var names []string
	for _, o := range g.Outputs() {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"ZetaName", "ZetaArn", "AlphaName", "AlphaArn", "MidName", "MidArn"}, names)
}

func TestConcurrentDeclareSameID(t *testing.T) {
	g := New()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := testFunction().Declare(g, "Fn"); err != nil {
				mu.Lock()
				errs++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 19, errs)
	assert.Equal(t, 1, g.Len())
	assert.Len(t, g.Outputs(), 1)
}

func TestDeferred(t *testing.T) {
	arn := Deferred{LogicalID: "AnalysisFn", Attribute: AttrArn}
	name := Deferred{LogicalID: "Data", Attribute: AttrRef}

	assert.Equal(t, "AnalysisFn.Arn", arn.String())
	assert.Equal(t, "Data", name.String())

	data, err := json.Marshal(arn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fn::GetAtt": ["AnalysisFn", "Arn"]}`, string(data))

	data, err = json.Marshal(name)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ref": "Data"}`, string(data))
}

func TestResolveOutputs(t *testing.T) {
	g := New()
	_, err := testFunction().Declare(g, "AnalysisFn")
	require.NoError(t, err)

	resolved, err := g.ResolveOutputs(MapResolver{
		"AnalysisFn.Arn": "arn:aws:lambda:us-east-1:123456789012:function:AnalysisFn",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"AnalysisFnArn": "arn:aws:lambda:us-east-1:123456789012:function:AnalysisFn",
	}, resolved)

	_, err = g.ResolveOutputs(MapResolver{})
	assert.True(t, errors.Is(err, ErrUnresolved))
	assert.ErrorContains(t, err, "AnalysisFnArn")
}

// fakeResource exports arbitrary output names.
type fakeResource struct {
	outputs []string
}

func (fakeResource) Kind() Kind { return Kind("fake") }

func (f fakeResource) Outputs(id string) []OutputBinding {
	var outs []OutputBinding
	for _, name := range f.outputs {
		outs = append(outs, OutputBinding{Name: name, Value: Deferred{LogicalID: id, Attribute: "Id"}})
	}
	return outs
}

func (f fakeResource) Declare(g *Graph, id string) (Node, error) {
	return g.insert(id, f, f.Outputs(id))
}

func ExampleFunction_Declare() {
	g := New()
	_, _ = Function{Config: FunctionConfig{Handler: "handler.main", TimeoutSeconds: 30, MemoryMB: 128}}.Declare(g, "Api")
	out, _ := g.Output("ApiArn")
	fmt.Println(out.Value)
	// Output: Api.Arn
}
