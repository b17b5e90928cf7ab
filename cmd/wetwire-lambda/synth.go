package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/differ"
	"github.com/lex00/wetwire-lambda-go/internal/publish"
	"github.com/lex00/wetwire-lambda-go/internal/synth"
	"github.com/lex00/wetwire-lambda-go/internal/template"
)

type synthOptions struct {
	format  string
	output  string
	publish bool
	compare string
	export  bool
	summary bool
}

func newSynthCmd() *cobra.Command {
	var opts synthOptions

	cmd := &cobra.Command{
		Use:   "synth [stack.yaml]",
		Short: "Bundle functions and render the CloudFormation template",
		Long: `Synth bundles every function of the stack inside its build container,
declares the resources and renders the template.

Function code is read from the AssetBucket parameter under
assets/<digest>.zip; --publish uploads the archives there.

Examples:
    wetwire-lambda synth
    wetwire-lambda synth stack.yaml -o template.json
    wetwire-lambda synth stack.yaml -f yaml --publish
    wetwire-lambda synth stack.yaml --compare template.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Upload artifact archives to the asset bucket")
	cmd.Flags().StringVar(&opts.compare, "compare", "", "Fail if the template differs from this previous template")
	cmd.Flags().BoolVar(&opts.export, "export", false, "Export every output as <stack>-<output>")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print the build result as JSON instead of the template")

	return cmd
}

func runSynth(cmd *cobra.Command, args []string, opts synthOptions) error {
	sess, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := sess.synthesize(ctx)
	if err != nil {
		return outputResult(wetwire.BuildResult{Errors: []string{err.Error()}}, opts)
	}
	defer sess.discardArtifacts(res)
	tmpl, err := template.Render(res.Graph, sess.templateOptions(opts.export))
	if err != nil {
		return outputResult(wetwire.BuildResult{Errors: []string{err.Error()}}, opts)
	}

	if opts.publish {
		p, err := publish.New(sess.cfg.S3, sess.cfg.AssetBucket, sess.logger)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		uploads, err := p.PublishAll(ctx, res.Artifacts)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		for _, u := range uploads {
			state := "uploaded"
			if u.Skipped {
				state = "unchanged"
			}
			fmt.Fprintf(os.Stderr, "%s: s3://%s/%s (%s)\n", u.Function, p.Bucket(), u.Key, state)
		}
	}

	for _, name := range res.MissingSecrets {
		fmt.Fprintf(os.Stderr, "warning: %s is not set and will be deployed empty\n", name)
	}

	if err := outputResult(buildResult(res, tmpl), opts); err != nil {
		return err
	}
	if opts.compare != "" {
		return compareWith(tmpl, opts.compare)
	}
	return nil
}

// buildResult summarizes a completed synthesis pass.
func buildResult(res *synth.Result, tmpl *wetwire.Template) wetwire.BuildResult {
	result := wetwire.BuildResult{Success: true, Template: *tmpl}
	for _, n := range res.Graph.Nodes() {
		result.Resources = append(result.Resources, n.LogicalID)
	}
	for _, out := range res.Graph.Outputs() {
		result.Outputs = append(result.Outputs, out.Name)
	}
	for _, n := range res.Graph.Nodes() {
		a, ok := res.Artifacts[n.LogicalID]
		if !ok {
			continue
		}
		result.Artifacts = append(result.Artifacts, artifactSummary(n.LogicalID, a))
	}
	return result
}

func artifactSummary(id string, a *bundle.Artifact) wetwire.ArtifactSummary {
	return wetwire.ArtifactSummary{
		Function:     id,
		Runtime:      a.Runtime,
		Architecture: string(a.Arch),
		Path:         a.RootPath,
		Digest:       a.Digest,
		Key:          a.Key(),
		Files:        a.Files.Len(),
		Dependencies: a.Dependencies,
	}
}

func outputResult(result wetwire.BuildResult, opts synthOptions) error {
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("synthesis failed")
	}

	if opts.summary {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(data, opts.output)
	}

	data, err := encodeTemplate(&result.Template, opts.format)
	if err != nil {
		return err
	}
	return writeOutput(data, opts.output)
}

// compareWith reports the differences between tmpl and a previous template
// file, and fails when there are any.
func compareWith(tmpl *wetwire.Template, previous string) error {
	prev, err := differ.LoadTemplate(previous)
	if err != nil {
		return fmt.Errorf("loading %s: %w", previous, err)
	}
	result, err := differ.Compare(prev, tmpl, differ.Options{})
	if err != nil {
		return err
	}
	if result.Summary.IsEmpty() {
		fmt.Fprintf(os.Stderr, "No changes against %s\n", previous)
		return nil
	}
	printDiff(os.Stderr, result)
	return fmt.Errorf("template differs from %s", previous)
}
