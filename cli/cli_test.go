package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// newTestRoot creates a fresh cobra root command wired to all subcommands.
// Each test gets an isolated command tree to avoid shared state.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "onixcheck",
		SilenceUsage: true,
	}
	root.AddCommand(NewValidateCmd())
	root.AddCommand(NewScoreCmd())
	root.AddCommand(NewRetailersCmd())
	root.AddCommand(NewBatchCmd())
	return root
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// schemaArgs points the pipeline at the fixture schemas for all three tag
// conventions.
func schemaArgs() []string {
	return []string{
		"--reference-schema", "../testdata/onix-reference.xsd",
		"--short-schema", "../testdata/onix-short.xsd",
		"--legacy-schema", "../testdata/onix-legacy.xsd",
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v", err, err)
	}
	return exitErr.Code
}

// --- Validate command tests ---

func TestValidate_CleanFile(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"validate", "../testdata/clean.xml"}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "Valid!") {
		t.Errorf("expected 'Valid!' in output, got: %q", stdout)
	}
	if !strings.Contains(stdout, "1 product") {
		t.Errorf("expected product count in output, got: %q", stdout)
	}
}

func TestValidate_IncompleteFeedFails(t *testing.T) {
	// The second product misses the critical retailer fields, so the run
	// carries error-severity findings.
	root := newTestRoot()
	args := append([]string{"validate", "../testdata/reference.xml"}, schemaArgs()...)
	_, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for feed with critical violations")
	}
	if got := exitCode(t, err); got != exitValidation {
		t.Errorf("exit code = %d, want %d", got, exitValidation)
	}
}

func TestValidate_StrictTreatsWarningsAsErrors(t *testing.T) {
	// warned.xml prices without a currency: one warning, zero errors.
	args := append([]string{"validate", "../testdata/warned.xml"}, schemaArgs()...)
	stdout, _, err := executeCommand(newTestRoot(), args...)
	if err != nil {
		t.Fatalf("expected warnings to pass by default, got: %v", err)
	}
	if !strings.Contains(stdout, "1 warning") {
		t.Errorf("expected warning count in output, got: %q", stdout)
	}

	_, _, err = executeCommand(newTestRoot(), append(args, "--strict")...)
	if err == nil {
		t.Fatal("expected error under --strict")
	}
	if got := exitCode(t, err); got != exitValidation {
		t.Errorf("exit code = %d, want %d", got, exitValidation)
	}
}

func TestValidate_SchemaViolations(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"validate", "../testdata/invalid.xml"}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for schema violations")
	}
	if got := exitCode(t, err); got != exitValidation {
		t.Errorf("exit code = %d, want %d", got, exitValidation)
	}
	if !strings.Contains(stdout, "[schema/error]") {
		t.Errorf("expected schema error finding in output, got: %q", stdout)
	}
}

func TestValidate_JSONFormat(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"validate", "../testdata/clean.xml", "--format", "json"}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(stdout), "{") {
		t.Errorf("expected JSON object output, got: %q", stdout)
	}
	if !strings.Contains(stdout, `"product_scores"`) {
		t.Errorf("expected product_scores in JSON output, got: %q", stdout)
	}
}

func TestValidate_FileNotFound(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"validate", "/nonexistent/feed.xml"}, schemaArgs()...)
	_, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if got := exitCode(t, err); got != exitFileNotFound {
		t.Errorf("exit code = %d, want %d", got, exitFileNotFound)
	}
}

func TestValidate_NoSchemasConfigured(t *testing.T) {
	root := newTestRoot()
	_, _, err := executeCommand(root, "validate", "../testdata/reference.xml")
	if err == nil {
		t.Fatal("expected error with no schemas configured")
	}
	if got := exitCode(t, err); got != exitConfig {
		t.Errorf("exit code = %d, want %d", got, exitConfig)
	}
}

func TestValidate_BadRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - assert: //Product\n"), 0644); err != nil {
		t.Fatal(err)
	}

	root := newTestRoot()
	args := append([]string{"validate", "../testdata/reference.xml", "--rules", path}, schemaArgs()...)
	_, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for rule without id")
	}
	if got := exitCode(t, err); got != exitConfig {
		t.Errorf("exit code = %d, want %d", got, exitConfig)
	}
}

// --- Score command tests ---

func TestScore_Text(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"score", "../testdata/reference.xml"}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "9781861978769: 97.0%") {
		t.Errorf("expected first product score, got: %q", stdout)
	}
	if !strings.Contains(stdout, "9781861972712: 43.0%") {
		t.Errorf("expected second product score, got: %q", stdout)
	}
	if !strings.Contains(stdout, "missing: ") {
		t.Errorf("expected missing field listing, got: %q", stdout)
	}
}

func TestScore_MinThreshold(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"score", "../testdata/reference.xml", "--min", "50"}, schemaArgs()...)
	_, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for product below threshold")
	}
	if got := exitCode(t, err); got != exitValidation {
		t.Errorf("exit code = %d, want %d", got, exitValidation)
	}
	if !strings.Contains(err.Error(), "9781861972712") {
		t.Errorf("error should name the failing product, got: %q", err.Error())
	}
}

func TestScore_JSONFormat(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"score", "../testdata/reference.xml", "--format", "json"}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(stdout), "[") {
		t.Errorf("expected JSON array output, got: %q", stdout)
	}
}

// --- Retailers command tests ---

func TestRetailers_ReportsIncompatiblePairings(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"retailers", "../testdata/reference.xml"}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for incompatible pairings")
	}
	if got := exitCode(t, err); got != exitValidation {
		t.Errorf("exit code = %d, want %d", got, exitValidation)
	}
	if !strings.Contains(stdout, "INCOMPATIBLE") {
		t.Errorf("expected incompatible verdict in output, got: %q", stdout)
	}
	if !strings.Contains(stdout, "compatible") {
		t.Errorf("expected compatible verdict in output, got: %q", stdout)
	}
}

func TestRetailers_UnknownProfile(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"retailers", "../testdata/reference.xml", "--retailer", "nope"}, schemaArgs()...)
	_, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for unknown retailer profile")
	}
	if got := exitCode(t, err); got != exitConfig {
		t.Errorf("exit code = %d, want %d", got, exitConfig)
	}
}

// --- Batch command tests ---

func TestBatch_Directory(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile("../testdata/reference.xml")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "feed.xml"), src, 0644); err != nil {
		t.Fatal(err)
	}

	root := newTestRoot()
	args := append([]string{"batch", dir}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "feed.xml: done") {
		t.Errorf("expected done job line, got: %q", stdout)
	}
	if !strings.Contains(stdout, "1 job") {
		t.Errorf("expected job count, got: %q", stdout)
	}
}

func TestBatch_FailedJob(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	root := newTestRoot()
	args := append([]string{"batch", dir}, schemaArgs()...)
	stdout, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for failed job")
	}
	if got := exitCode(t, err); got != exitValidation {
		t.Errorf("exit code = %d, want %d", got, exitValidation)
	}
	if !strings.Contains(stdout, "broken.xml: failed") {
		t.Errorf("expected failed job line, got: %q", stdout)
	}
}

func TestBatch_BadCronExpression(t *testing.T) {
	root := newTestRoot()
	args := append([]string{"batch", t.TempDir(), "--cron", "not a cron"}, schemaArgs()...)
	_, _, err := executeCommand(root, args...)
	if err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
	if got := exitCode(t, err); got != exitConfig {
		t.Errorf("exit code = %d, want %d", got, exitConfig)
	}
}

// --- Root command tests ---

func TestRoot_Help(t *testing.T) {
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "--help")
	if err != nil {
		t.Fatalf("--help should not error, got: %v", err)
	}
	for _, sub := range []string{"validate", "score", "retailers", "batch"} {
		if !strings.Contains(stdout, sub) {
			t.Errorf("help should list %q command", sub)
		}
	}
}
