package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metaops/onixcheck"
	"github.com/metaops/onixcheck/ruleset"
)

// addPipelineFlags registers the flags shared by every command that builds
// a validation pipeline.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("reference-schema", "", "XSD for reference-tag documents")
	cmd.Flags().String("short-schema", "", "XSD for short-tag documents")
	cmd.Flags().String("legacy-schema", "", "XSD for un-namespaced documents")
	cmd.Flags().String("patterns", "", "Business rule pattern set (YAML); built-in set when omitted")
	cmd.Flags().String("rules", "", "Publisher rule list (YAML)")
	cmd.Flags().String("weights", "", "Completeness weight table (YAML); built-in table when omitted")
	cmd.Flags().String("profiles", "", "Retailer profile set (YAML); built-in profiles when omitted")
	cmd.Flags().StringSlice("retailer", nil, "Retailer profile to evaluate (repeatable; all profiles when omitted)")
	cmd.Flags().Int("concurrency", 1, "Parallel stage and retailer evaluation bound")
}

// buildPipeline loads every configured resource and constructs the pipeline.
// Misconfiguration maps to the config exit code before any document is read.
func buildPipeline(cmd *cobra.Command) (*onixcheck.Pipeline, error) {
	flagString := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}

	cfg := onixcheck.Config{
		ReferenceSchema: flagString("reference-schema"),
		ShortSchema:     flagString("short-schema"),
		LegacySchema:    flagString("legacy-schema"),
	}

	if path := flagString("patterns"); path != "" {
		patterns, err := ruleset.LoadPatterns(path)
		if err != nil {
			return nil, exitError(exitConfig, "%s", err)
		}
		cfg.Patterns = patterns
	}
	if path := flagString("rules"); path != "" {
		rules, err := ruleset.LoadRules(path)
		if err != nil {
			return nil, exitError(exitConfig, "%s", err)
		}
		cfg.Rules = rules
	}
	if path := flagString("weights"); path != "" {
		weights, err := ruleset.LoadWeights(path)
		if err != nil {
			return nil, exitError(exitConfig, "%s", err)
		}
		cfg.Weights = weights
	}
	if path := flagString("profiles"); path != "" {
		profiles, err := ruleset.LoadProfiles(path)
		if err != nil {
			return nil, exitError(exitConfig, "%s", err)
		}
		cfg.Profiles = profiles
	}
	cfg.ProfileNames, _ = cmd.Flags().GetStringSlice("retailer")

	pipeline, err := onixcheck.New(cfg)
	if err != nil {
		return nil, exitError(exitConfig, "%s", err)
	}
	return pipeline, nil
}

// runOptions assembles the per-run options from command flags.
func runOptions(cmd *cobra.Command) onixcheck.RunOptions {
	opts := onixcheck.DefaultRunOptions()
	if concurrency, err := cmd.Flags().GetInt("concurrency"); err == nil && concurrency > 0 {
		opts.Concurrency = concurrency
	}
	return opts
}

// parseDocument reads and parses one ONIX file, mapping missing files to
// their dedicated exit code.
func parseDocument(path string) (*onixcheck.Document, error) {
	doc, err := onixcheck.ParseFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exitError(exitFileNotFound, "file not found: %s", path)
		}
		return nil, exitError(exitRuntime, "%s", err)
	}
	return doc, nil
}

// runPipeline executes one document and maps run-time failures to exit
// codes. Convention/schema mismatches surface as ConfigError here rather
// than at construction.
func runPipeline(cmd *cobra.Command, pipeline *onixcheck.Pipeline, doc *onixcheck.Document) (*onixcheck.Result, error) {
	result, err := pipeline.RunWithOptions(cmd.Context(), doc, runOptions(cmd))
	if err != nil {
		var cfgErr *onixcheck.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, exitError(exitConfig, "%s", err)
		}
		return nil, exitError(exitRuntime, "%s", err)
	}
	return result, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printFindingsText writes findings as one line each, followed by a summary.
func printFindingsText(w io.Writer, result *onixcheck.Result) {
	for _, f := range result.Findings {
		fmt.Fprintln(w, f.String())
	}

	errs := onixcheck.Errors(result.Findings)
	warns := onixcheck.Warnings(result.Findings)

	switch {
	case len(errs) == 0 && len(warns) == 0:
		fmt.Fprintf(w, "Valid! (%d %s)\n", result.Stats.Products, pluralize("product", result.Stats.Products))
	case len(errs) == 0:
		fmt.Fprintf(w, "\nValid! (%d %s, %d %s)\n",
			result.Stats.Products, pluralize("product", result.Stats.Products),
			len(warns), pluralize("warning", len(warns)))
	default:
		fmt.Fprintf(w, "\n%d %s, %d %s across %d %s\n",
			len(errs), pluralize("error", len(errs)),
			len(warns), pluralize("warning", len(warns)),
			result.Stats.Products, pluralize("product", result.Stats.Products))
	}
}

func printScoresText(w io.Writer, result *onixcheck.Result) {
	for _, score := range result.ProductScores {
		fmt.Fprintf(w, "%s: %.1f%%\n", score.ProductID, score.Overall)
		for _, category := range []string{"required", "recommended", "optional"} {
			if v, ok := score.Categories[category]; ok {
				fmt.Fprintf(w, "  %s: %.1f%%\n", category, v)
			}
		}
		if len(score.MissingFields) > 0 {
			fmt.Fprintf(w, "  missing: %s\n", strings.Join(score.MissingFields, ", "))
		}
	}
}

func printRetailersText(w io.Writer, result *onixcheck.Result) {
	for _, rr := range result.RetailerResults {
		verdict := "compatible"
		if !rr.Compatible {
			verdict = "INCOMPATIBLE"
		}
		fmt.Fprintf(w, "%s / %s: %s\n", rr.Retailer, rr.ProductID, verdict)
		for _, v := range rr.Violations {
			fmt.Fprintf(w, "  [%s] %s\n", v.Severity, v.Message)
		}
	}
}

// pluralize returns the singular or plural form of a word based on count.
func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
