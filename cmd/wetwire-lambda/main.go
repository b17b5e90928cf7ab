// Command wetwire-lambda synthesizes deployable function stacks.
//
// Usage:
//
//	wetwire-lambda synth stack.yaml         Bundle functions and render the template
//	wetwire-lambda validate stack.yaml      Check the stack without building
//	wetwire-lambda graph stack.yaml         Draw the resource graph
//	wetwire-lambda version                  Show version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wetwire-lambda",
		Short: "Synthesize function stacks into CloudFormation templates",
		Long: `wetwire-lambda bundles function source trees with their dependencies and
renders them as a CloudFormation template.

Declare functions in a stack file:

    functions:
      AnalysisFn:
        source: ./food-analysis-lambda
        runtime: python3.11
        handler: handler.lambda_handler
        timeout: 30
        memory: 1024

Then synthesize:

    wetwire-lambda synth stack.yaml -o template.json`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Settings file (default: ./wetwire.yaml)")
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "Dotenv files to load (default: .env)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		newSynthCmd(),
		newBundleCmd(),
		newValidateCmd(),
		newGraphCmd(),
		newListCmd(),
		newDiffCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wetwire-lambda %s\n", getVersion())
		},
	}
}
