package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/graph"
	"github.com/lex00/wetwire-lambda-go/internal/validation"
)

func newGraphCmd() *cobra.Command {
	var (
		outputFormat      string
		includeParameters bool
		includeOutputs    bool
		clusterByKind     bool
	)

	cmd := &cobra.Command{
		Use:   "graph [stack.yaml]",
		Short: "Generate DOT graph of the resource graph",
		Long: `Generate a DOT or Mermaid graph of the stack's resources and outputs.
No build container is started; artifact digests shown are placeholders.

The output can be rendered with Graphviz:
    wetwire-lambda graph | dot -Tpng -o stack.png

Or used in GitHub markdown (Mermaid format):
    wetwire-lambda graph -f mermaid

Examples:
    wetwire-lambda graph stack.yaml
    wetwire-lambda graph stack.yaml -p              # include the asset bucket parameter
    wetwire-lambda graph stack.yaml -O              # include outputs
    wetwire-lambda graph stack.yaml -c              # cluster by kind`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args, outputFormat, &graph.Renderer{
				IncludeParameters: includeParameters,
				IncludeOutputs:    includeOutputs,
				ClusterByKind:     clusterByKind,
			})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&includeParameters, "include-parameters", "p", false, "Include the asset bucket parameter")
	cmd.Flags().BoolVarP(&includeOutputs, "include-outputs", "O", false, "Include output bindings")
	cmd.Flags().BoolVarP(&clusterByKind, "cluster", "c", false, "Cluster resources by kind")

	return cmd
}

func runGraph(cmd *cobra.Command, args []string, format string, r *graph.Renderer) error {
	switch format {
	case "dot":
		r.Format = graph.FormatDOT
	case "mermaid":
		r.Format = graph.FormatMermaid
	default:
		return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", format)
	}

	sess, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	res, err := validation.Plan(context.Background(), sess.stack, validation.Options{
		Lookup: config.EnvLookup(),
		Arch:   sess.arch,
		Logger: sess.logger,
	})
	if err != nil {
		return err
	}
	return r.Render(res.Graph, os.Stdout)
}
