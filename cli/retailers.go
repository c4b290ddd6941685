package cli

import (
	"github.com/spf13/cobra"
)

// NewRetailersCmd creates the "retailers" subcommand.
func NewRetailersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retailers <file>",
		Short: "Check retailer channel compatibility for every product",
		Args:  cobra.ExactArgs(1),
		RunE:  runRetailers,
	}

	addPipelineFlags(cmd)
	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runRetailers(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
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
		if err := printJSON(out, result.RetailerResults); err != nil {
			return exitError(exitRuntime, "encoding results: %s", err)
		}
	} else {
		printRetailersText(out, result)
	}

	incompatible := 0
	for _, rr := range result.RetailerResults {
		if !rr.Compatible {
			incompatible++
		}
	}
	if incompatible > 0 {
		return exitError(exitValidation, "%d incompatible retailer %s",
			incompatible, pluralize("pairing", incompatible))
	}
	return nil
}
