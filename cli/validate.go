package cli

import (
	"github.com/spf13/cobra"

	"github.com/metaops/onixcheck"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Run the full validation pipeline over one ONIX file",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	addPipelineFlags(cmd)
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	strict, _ := cmd.Flags().GetBool("strict")
	out := cmd.OutOrStdout()

	pipeline, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	doc, err := parseDocument(args[0])
	if err != nil {
		return err
	}

	result, err := runPipeline(cmd, pipeline, doc)
	if err != nil {
		return err
	}

	if format == "json" {
		if err := printJSON(out, result); err != nil {
			return exitError(exitRuntime, "encoding result: %s", err)
		}
	} else {
		printFindingsText(out, result)
	}

	hasErrs := onixcheck.HasErrors(result.Findings)
	hasWarns := len(onixcheck.Warnings(result.Findings)) > 0

	if hasErrs || (strict && hasWarns) {
		return exitError(exitValidation, "validation failed")
	}
	return nil
}
