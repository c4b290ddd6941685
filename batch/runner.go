package batch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/metaops/onixcheck"
)

const (
	defaultWorkers    = 4
	defaultDocTimeout = 2 * time.Minute
)

// RunnerConfig configures a batch Runner.
type RunnerConfig struct {
	Pipeline *onixcheck.Pipeline
	Store    Store

	// Workers bounds how many documents validate concurrently.
	Workers int

	// DocTimeout bounds one document's validation. Zero selects the default.
	DocTimeout time.Duration

	// TTL stamps each job's ExpiresAt; zero keeps jobs forever.
	TTL time.Duration

	// RunOptions are passed to every pipeline run.
	RunOptions onixcheck.RunOptions

	Now    func() time.Time
	Logger *slog.Logger
}

// Runner validates many documents on a bounded worker pool, recording each
// as a job in the store. Documents are independent of one another, so one
// failed or timed-out document never stops the rest of the batch.
type Runner struct {
	pipeline   *onixcheck.Pipeline
	store      Store
	workers    int
	docTimeout time.Duration
	ttl        time.Duration
	runOpts    onixcheck.RunOptions
	now        func() time.Time
	logger     *slog.Logger
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("batch runner pipeline is nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("batch runner store is nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.DocTimeout <= 0 {
		cfg.DocTimeout = defaultDocTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		pipeline:   cfg.Pipeline,
		store:      cfg.Store,
		workers:    cfg.Workers,
		docTimeout: cfg.DocTimeout,
		ttl:        cfg.TTL,
		runOpts:    cfg.RunOptions,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}, nil
}

// RunDir validates every .xml file under dir, non-recursively, in name
// order.
func (r *Runner) RunDir(ctx context.Context, dir string) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return r.RunFiles(ctx, paths)
}

// RunFiles validates the given documents and returns their jobs in input
// order. The returned jobs reflect final state; the store sees the same
// records plus the intermediate queued/running transitions.
func (r *Runner) RunFiles(ctx context.Context, paths []string) ([]Job, error) {
	jobs := make([]Job, len(paths))
	for i, path := range paths {
		job := Job{
			ID:          uuid.NewString(),
			Source:      path,
			Status:      StatusQueued,
			SubmittedAt: r.now(),
		}
		if r.ttl > 0 {
			job.ExpiresAt = job.SubmittedAt.Add(r.ttl)
		}
		jobs[i] = job
		if err := r.store.Put(ctx, job); err != nil {
			return nil, err
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)
	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			jobs[i] = r.runJob(ctx, jobs[i])
		}(i)
	}
	wg.Wait()

	return jobs, ctx.Err()
}

func (r *Runner) runJob(ctx context.Context, job Job) Job {
	job.Status = StatusRunning
	if err := r.store.Put(ctx, job); err != nil {
		r.logger.Error("mark job running", "job_id", job.ID, "source", job.Source, "error", err)
	}

	result, err := r.validate(ctx, job.Source)
	finished := r.now()
	job.CompletedAt = &finished

	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		r.logger.Error("job failed", "job_id", job.ID, "source", job.Source, "error", err)
	} else {
		job.Status = StatusDone
		job.Result = result
		r.logger.Info("job done", "job_id", job.ID, "source", job.Source,
			"products", result.Stats.Products, "errors", result.Stats.Errors)
	}

	if err := r.store.Put(ctx, job); err != nil {
		r.logger.Error("persist job result", "job_id", job.ID, "source", job.Source, "error", err)
	}
	return job
}

func (r *Runner) validate(ctx context.Context, path string) (*onixcheck.Result, error) {
	doc, err := onixcheck.ParseFile(path)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.docTimeout)
	defer cancel()
	return r.pipeline.RunWithOptions(runCtx, doc, r.runOpts)
}
