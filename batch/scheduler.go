package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultSchedulerPollInterval = 30 * time.Second

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// nextCronRunUTC returns when the expression next fires after now.
// Expressions are five-field and UTC-only; timezone prefixes are rejected so
// schedules behave the same on every host.
func nextCronRunUTC(expr string, now time.Time) (time.Time, error) {
	schedule, err := parseCronExpressionUTC(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now.UTC()), nil
}

func parseCronExpressionUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// SchedulerConfig configures periodic re-validation of a feed directory.
type SchedulerConfig struct {
	Runner *Runner

	// Dir is the feed directory validated on every firing.
	Dir string

	// Cron is a five-field, UTC-only cron expression.
	Cron string

	// PollInterval is how often the scheduler checks for a due firing.
	PollInterval time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Scheduler re-validates a feed directory on a cron cadence. Publisher
// feeds arrive by replacing files in place, so re-running over the same
// directory picks up whatever is current. An overlapping firing is skipped,
// never queued behind the active one.
type Scheduler struct {
	runner       *Runner
	dir          string
	cronExpr     string
	pollInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu        sync.Mutex
	nextRunAt time.Time
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a feed directory scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("scheduler runner is nil")
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("scheduler feed directory is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultSchedulerPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	next, err := nextCronRunUTC(cfg.Cron, cfg.Now())
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		runner:       cfg.Runner,
		dir:          cfg.Dir,
		cronExpr:     cfg.Cron,
		pollInterval: cfg.PollInterval,
		now:          cfg.Now,
		logger:       cfg.Logger,
		nextRunAt:    next,
	}, nil
}

// NextRunAt reports when the schedule next fires.
func (s *Scheduler) NextRunAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// Start begins background polling. Starting an already started scheduler is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := s.RunOnce(loopCtx); err != nil {
					s.logger.Error("scheduler pass", "dir", s.dir, "error", err)
				}
			}
		}
	}()
}

// Stop halts background polling, waiting for the loop to exit or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single scheduler pass: if the schedule is due and no
// prior firing is still active, the feed directory is validated.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.now().UTC()

	s.mu.Lock()
	if now.Before(s.nextRunAt) {
		s.mu.Unlock()
		return nil
	}

	next, err := nextCronRunUTC(s.cronExpr, now)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.nextRunAt = next

	if s.running {
		s.mu.Unlock()
		s.logger.Warn("skipped firing, prior run still active", "dir", s.dir)
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	jobs, err := s.runner.RunDir(ctx, s.dir)
	if err != nil {
		return err
	}

	var failed int
	for _, job := range jobs {
		if job.Status == StatusFailed {
			failed++
		}
	}
	s.logger.Info("feed validated", "dir", s.dir, "jobs", len(jobs), "failed", failed, "next_run", s.NextRunAt())
	return nil
}
