package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/validation"
)

// newValidateCmd creates the "validate" subcommand for checking a stack
// without building it.
func newValidateCmd() *cobra.Command {
	var (
		outputFormat string
		skipLint     bool
	)

	cmd := &cobra.Command{
		Use:   "validate [stack.yaml]",
		Short: "Check a stack without building it",
		Long: `Validate checks a stack without starting any build container.

Checks performed:
  - Stack structure: logical IDs, runtimes, architectures, handlers
  - Resource limits: timeout and memory of every function
  - Source trees: every function source directory exists
  - Template: the rendered template passes cfn-lint rules

Examples:
    wetwire-lambda validate
    wetwire-lambda validate stack.yaml --format json
    wetwire-lambda validate stack.yaml --skip-lint`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, outputFormat, skipLint)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "Skip cfn-lint rules")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, format string, skipLint bool) error {
	sess, err := newSession(cmd, args)
	if err != nil {
		return err
	}

	result, err := validation.Validate(context.Background(), sess.stack, validation.Options{
		Lookup:   config.EnvLookup(),
		Arch:     sess.arch,
		SkipLint: skipLint,
		Logger:   sess.logger,
	})
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return outputValidateResult(*result, format)
}

func outputValidateResult(result wetwire.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))

	case "text":
		if result.Success {
			fmt.Printf("Validation passed: %d resources OK\n", result.Resources)
			for _, warnMsg := range result.Warnings {
				fmt.Printf("  WARNING: %s\n", warnMsg)
			}
			return nil
		}

		fmt.Println("Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Printf("  ERROR: %s\n", errMsg)
		}
		for _, warnMsg := range result.Warnings {
			fmt.Printf("  WARNING: %s\n", warnMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		os.Exit(1)
	}

	return nil
}
