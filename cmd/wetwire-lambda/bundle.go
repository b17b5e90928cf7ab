package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/synth"
)

func newBundleCmd() *cobra.Command {
	var (
		functions    []string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "bundle [stack.yaml]",
		Short: "Bundle functions without rendering a template",
		Long: `Bundle builds function artifacts in their build containers and prints
where each artifact was staged, its digest and its dependency set.
Staging directories are kept for inspection; if any function fails, the
ones already built are removed.

Examples:
    wetwire-lambda bundle
    wetwire-lambda bundle stack.yaml --function AnalysisFn
    wetwire-lambda bundle --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundle(cmd, args, functions, outputFormat)
		},
	}

	cmd.Flags().StringSliceVar(&functions, "function", nil, "Function logical IDs to bundle (default: all)")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runBundle(cmd *cobra.Command, args, functions []string, format string) error {
	sess, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	if len(functions) == 0 {
		functions = sess.stack.FunctionIDs()
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format: %s", format)
	}

	ctx, cancel := signalContext()
	defer cancel()
	b, closeFn, err := sess.bundler(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	opts := sess.synthOptions(b)
	built := &synth.Result{Artifacts: map[string]*bundle.Artifact{}}
	summaries := make([]wetwire.ArtifactSummary, 0, len(functions))
	for _, id := range functions {
		a, err := synth.BundleFunction(ctx, sess.stack, id, opts)
		if err != nil {
			sess.discardArtifacts(built)
			return err
		}
		built.Artifacts[id] = a
		summaries = append(summaries, artifactSummary(id, a))
	}

	if format == "json" {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("%s: %s/%s, %d files\n", s.Function, s.Runtime, s.Architecture, s.Files)
		fmt.Printf("  path:   %s\n", s.Path)
		fmt.Printf("  digest: %s\n", s.Digest)
		if len(s.Dependencies) > 0 {
			fmt.Printf("  deps:   %v\n", s.Dependencies)
		}
	}
	return nil
}
