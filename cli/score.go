package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewScoreCmd creates the "score" subcommand.
func NewScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <file>",
		Short: "Report per-product metadata completeness scores",
		Args:  cobra.ExactArgs(1),
		RunE:  runScore,
	}

	addPipelineFlags(cmd)
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Float64("min", 0, "Fail when any product scores below this percentage")

	return cmd
}

func runScore(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	min, _ := cmd.Flags().GetFloat64("min")
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
		if err := printJSON(out, result.ProductScores); err != nil {
			return exitError(exitRuntime, "encoding scores: %s", err)
		}
	} else {
		printScoresText(out, result)
	}

	var below []string
	for _, score := range result.ProductScores {
		if score.Overall < min {
			below = append(below, fmt.Sprintf("%s (%.1f%%)", score.ProductID, score.Overall))
		}
	}
	if len(below) > 0 {
		return exitError(exitValidation, "%d %s below %.1f%%: %v",
			len(below), pluralize("product", len(below)), min, below)
	}
	return nil
}
