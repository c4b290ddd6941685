package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/metaops/onixcheck/batch"
)

// NewBatchCmd creates the "batch" subcommand.
func NewBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Validate every ONIX file in a feed directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	addPipelineFlags(cmd)
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Int("workers", 4, "Documents validated concurrently")
	cmd.Flags().Duration("doc-timeout", 2*time.Minute, "Per-document validation timeout")
	cmd.Flags().Duration("ttl", 0, "Job retention in the store; 0 keeps jobs forever")
	cmd.Flags().String("store-dsn", "", "SQLite DSN for the job store; in-memory when omitted")
	cmd.Flags().String("cron", "", "Five-field UTC cron expression; re-validate the directory on this cadence")
	cmd.Flags().Duration("poll-interval", 30*time.Second, "Schedule poll interval (with --cron)")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	format, _ := cmd.Flags().GetString("format")
	workers, _ := cmd.Flags().GetInt("workers")
	docTimeout, _ := cmd.Flags().GetDuration("doc-timeout")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	storeDSN, _ := cmd.Flags().GetString("store-dsn")
	cronExpr, _ := cmd.Flags().GetString("cron")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	out := cmd.OutOrStdout()
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

	pipeline, err := buildPipeline(cmd)
	if err != nil {
		return err
	}

	var store batch.Store
	if storeDSN != "" {
		sqlStore, err := batch.NewSQLiteStore(batch.SQLiteStoreConfig{DSN: storeDSN})
		if err != nil {
			return exitError(exitConfig, "%s", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	} else {
		store = batch.NewMemoryStore()
	}

	runner, err := batch.NewRunner(batch.RunnerConfig{
		Pipeline:   pipeline,
		Store:      store,
		Workers:    workers,
		DocTimeout: docTimeout,
		TTL:        ttl,
		RunOptions: runOptions(cmd),
		Logger:     logger,
	})
	if err != nil {
		return exitError(exitConfig, "%s", err)
	}

	if cronExpr != "" {
		return runBatchScheduled(cmd, runner, dir, cronExpr, pollInterval, logger)
	}

	jobs, err := runner.RunDir(cmd.Context(), dir)
	if err != nil {
		return exitError(exitRuntime, "%s", err)
	}

	if format == "json" {
		if err := printJSON(out, jobs); err != nil {
			return exitError(exitRuntime, "encoding jobs: %s", err)
		}
	} else {
		printJobsText(out, jobs)
	}

	failed := 0
	for _, job := range jobs {
		if job.Status == batch.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return exitError(exitValidation, "%d of %d %s failed",
			failed, len(jobs), pluralize("job", len(jobs)))
	}
	return nil
}

// runBatchScheduled keeps re-validating the directory on the cron cadence
// until the command's context is cancelled.
func runBatchScheduled(cmd *cobra.Command, runner *batch.Runner, dir, cronExpr string, pollInterval time.Duration, logger *slog.Logger) error {
	scheduler, err := batch.NewScheduler(batch.SchedulerConfig{
		Runner:       runner,
		Dir:          dir,
		Cron:         cronExpr,
		PollInterval: pollInterval,
		Logger:       logger,
	})
	if err != nil {
		return exitError(exitConfig, "%s", err)
	}

	logger.Info("scheduler starting", "dir", dir, "cron", cronExpr, "next_run", scheduler.NextRunAt())
	scheduler.Start()
	<-cmd.Context().Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return scheduler.Stop(stopCtx)
}

func printJobsText(w io.Writer, jobs []batch.Job) {
	for _, job := range jobs {
		switch job.Status {
		case batch.StatusDone:
			stats := job.Result.Stats
			fmt.Fprintf(w, "%s: %s (%d %s, %d %s, %d %s)\n",
				job.Source, job.Status,
				stats.Products, pluralize("product", stats.Products),
				stats.Errors, pluralize("error", stats.Errors),
				stats.Warnings, pluralize("warning", stats.Warnings))
		case batch.StatusFailed:
			fmt.Fprintf(w, "%s: %s (%s)\n", job.Source, job.Status, job.Error)
		default:
			fmt.Fprintf(w, "%s: %s\n", job.Source, job.Status)
		}
	}
	fmt.Fprintf(w, "\n%d %s\n", len(jobs), pluralize("job", len(jobs)))
}
