package batch

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseCronExpressionUTC(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr string
	}{
		{name: "five fields", expr: "*/5 * * * *"},
		{name: "daily", expr: "30 2 * * *"},
		{name: "empty", expr: "   ", wantErr: "required"},
		{name: "timezone prefix", expr: "CRON_TZ=America/New_York * * * * *", wantErr: "UTC-only"},
		{name: "tz prefix", expr: "TZ=UTC * * * * *", wantErr: "UTC-only"},
		{name: "six fields", expr: "* * * * * *", wantErr: "invalid cron expression"},
		{name: "garbage", expr: "often", wantErr: "invalid cron expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCronExpressionUTC(tt.expr)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("parse %q: %v", tt.expr, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("parse %q error = %v, want it to mention %q", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNextCronRunUTC(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 2, 0, 0, time.UTC)
	next, err := nextCronRunUTC("*/5 * * * *", now)
	if err != nil {
		t.Fatalf("nextCronRunUTC: %v", err)
	}
	want := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "../testdata/reference.xml", "feed.xml")

	store := NewMemoryStore()
	r, err := NewRunner(RunnerConfig{
		Pipeline: testPipeline(t),
		Store:    store,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	now := time.Date(2026, 3, 1, 9, 2, 0, 0, time.UTC)
	s, err := NewScheduler(SchedulerConfig{
		Runner: r,
		Dir:    dir,
		Cron:   "*/5 * * * *",
		Now:    func() time.Time { return now },
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	firstDue := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)
	if got := s.NextRunAt(); !got.Equal(firstDue) {
		t.Fatalf("NextRunAt = %v, want %v", got, firstDue)
	}

	// Not due yet: nothing runs.
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if jobs, _ := store.List(context.Background()); len(jobs) != 0 {
		t.Fatalf("scheduler fired early: %d jobs", len(jobs))
	}

	// Due: the feed directory is validated and the schedule advances.
	now = firstDue.Add(time.Second)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != StatusDone {
		t.Fatalf("jobs after firing = %v", jobs)
	}
	wantNext := time.Date(2026, 3, 1, 9, 10, 0, 0, time.UTC)
	if got := s.NextRunAt(); !got.Equal(wantNext) {
		t.Errorf("NextRunAt after firing = %v, want %v", got, wantNext)
	}
}

func TestSchedulerRejectsBadConfig(t *testing.T) {
	r, err := NewRunner(RunnerConfig{Pipeline: testPipeline(t), Store: NewMemoryStore(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if _, err := NewScheduler(SchedulerConfig{Runner: r, Dir: "", Cron: "* * * * *"}); err == nil {
		t.Error("NewScheduler without dir succeeded")
	}
	if _, err := NewScheduler(SchedulerConfig{Runner: r, Dir: "feeds", Cron: "nope"}); err == nil {
		t.Error("NewScheduler with bad cron succeeded")
	}
	if _, err := NewScheduler(SchedulerConfig{Dir: "feeds", Cron: "* * * * *"}); err == nil {
		t.Error("NewScheduler without runner succeeded")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRunner(RunnerConfig{Pipeline: testPipeline(t), Store: NewMemoryStore(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	s, err := NewScheduler(SchedulerConfig{
		Runner:       r,
		Dir:          dir,
		Cron:         "0 0 1 1 *",
		PollInterval: 10 * time.Millisecond,
		Logger:       quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.Start()
	s.Start() // idempotent

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
