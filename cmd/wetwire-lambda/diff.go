package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-lambda-go/internal/differ"
)

func newDiffCmd() *cobra.Command {
	var (
		outputFormat string
		ignoreOrder  bool
	)

	cmd := &cobra.Command{
		Use:   "diff <template1> <template2>",
		Short: "Compare two templates semantically",
		Long: `Diff compares two CloudFormation templates (JSON or YAML) resource by
resource and reports added, removed and modified resources and outputs.

Two synth runs over unchanged sources must produce no differences.

Examples:
    wetwire-lambda diff old.json new.json
    wetwire-lambda diff old.yaml new.json --format json
    wetwire-lambda diff old.json new.json --ignore-order`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args[0], args[1], outputFormat, ignoreOrder)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore list element order")

	return cmd
}

func runDiff(file1, file2, format string, ignoreOrder bool) error {
	result, err := differ.CompareFiles(file1, file2, differ.Options{IgnoreOrder: ignoreOrder})
	if err != nil {
		return err
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "text":
		if result.Summary.IsEmpty() {
			fmt.Println("No differences.")
			return nil
		}
		printDiff(os.Stdout, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}

func printDiff(w io.Writer, result *differ.Result) {
	for _, e := range result.Diff.Added {
		fmt.Fprintf(w, "+ %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range result.Diff.Removed {
		fmt.Fprintf(w, "- %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range result.Diff.Modified {
		fmt.Fprintf(w, "~ %s (%s)\n", e.Resource, e.Type)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "    %s\n", c)
		}
	}
	for _, o := range result.Diff.Outputs {
		fmt.Fprintf(w, "~ output %s\n", o)
	}
	s := result.Summary
	fmt.Fprintf(w, "\n%d added, %d removed, %d modified, %d output changes\n", s.Added, s.Removed, s.Modified, s.Outputs)
}
