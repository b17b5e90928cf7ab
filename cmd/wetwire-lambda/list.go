package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/graph"
	"github.com/lex00/wetwire-lambda-go/internal/template"
	"github.com/lex00/wetwire-lambda-go/internal/validation"
)

func newListCmd() *cobra.Command {
	var (
		outputFormat string
		resolveFile  string
	)

	cmd := &cobra.Command{
		Use:   "list [stack.yaml]",
		Short: "List declared resources and outputs",
		Long: `List declares the stack's resources without building them and prints
every resource and output binding.

With --resolve, outputs are resolved from a YAML file of provisioned values
keyed by "LogicalID" (primary identifier) or "LogicalID.Attribute":

    AnalysisFn.Arn: arn:aws:lambda:eu-west-1:123456789012:function:analysis
    Uploads: food-uploads

Examples:
    wetwire-lambda list
    wetwire-lambda list stack.yaml --format json
    wetwire-lambda list stack.yaml --resolve provisioned.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, outputFormat, resolveFile)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVar(&resolveFile, "resolve", "", "YAML file of provisioned values to resolve outputs with")

	return cmd
}

func runList(cmd *cobra.Command, args []string, format, resolveFile string) error {
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

	var resolved map[string]string
	if resolveFile != "" {
		values, err := loadResolver(resolveFile)
		if err != nil {
			return err
		}
		if resolved, err = res.Graph.ResolveOutputs(values); err != nil {
			return err
		}
	}

	return outputListResult(listResult(res.Graph, resolved), format)
}

// listResult describes g. resolved may be nil.
func listResult(g *graph.Graph, resolved map[string]string) wetwire.ListResult {
	result := wetwire.ListResult{Resources: make([]wetwire.ListResource, 0, g.Len())}
	for _, n := range g.Nodes() {
		result.Resources = append(result.Resources, wetwire.ListResource{
			Name: n.LogicalID,
			Kind: string(n.Kind()),
			Type: resourceType(n.Kind()),
		})
	}
	for _, out := range g.Outputs() {
		attr := out.Value.Attribute
		if attr == graph.AttrRef {
			attr = "Ref"
		}
		result.Outputs = append(result.Outputs, wetwire.ListOutput{
			Name:      out.Name,
			Resource:  out.Value.LogicalID,
			Attribute: attr,
			Value:     resolved[out.Name],
		})
	}
	return result
}

func resourceType(k graph.Kind) string {
	switch k {
	case graph.KindFunction:
		return template.TypeFunction
	case graph.KindBucket:
		return template.TypeBucket
	default:
		return ""
	}
}

func loadResolver(path string) (graph.MapResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values := graph.MapResolver{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return values, nil
}

func outputListResult(result wetwire.ListResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))

	case "text":
		if len(result.Resources) == 0 {
			fmt.Println("No resources found.")
			return nil
		}

		fmt.Printf("Resources (%d):\n\n", len(result.Resources))
		for _, res := range result.Resources {
			fmt.Printf("  %s: %s\n", res.Name, res.Type)
		}
		fmt.Printf("\nOutputs (%d):\n\n", len(result.Outputs))
		for _, out := range result.Outputs {
			if out.Value != "" {
				fmt.Printf("  %s = %s\n", out.Name, out.Value)
				continue
			}
			fmt.Printf("  %s: %s.%s\n", out.Name, out.Resource, out.Attribute)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}
