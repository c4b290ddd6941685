package batch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metaops/onixcheck"
)

func testPipeline(t *testing.T) *onixcheck.Pipeline {
	t.Helper()
	p, err := onixcheck.New(onixcheck.Config{
		ReferenceSchema: "../testdata/onix-reference.xsd",
		ShortSchema:     "../testdata/onix-short.xsd",
		LegacySchema:    "../testdata/onix-legacy.xsd",
	})
	if err != nil {
		t.Fatalf("New pipeline: %v", err)
	}
	return p
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func copyFixture(t *testing.T, dir, src, name string) string {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read fixture %s: %v", src, err)
	}
	dst := filepath.Join(dir, name)
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		t.Fatalf("write fixture %s: %v", dst, err)
	}
	return dst
}

func TestRunnerRunDir(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "../testdata/reference.xml", "a-reference.xml")
	copyFixture(t, dir, "../testdata/short.xml", "b-short.xml")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a feed"), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewMemoryStore()
	r, err := NewRunner(RunnerConfig{
		Pipeline: testPipeline(t),
		Store:    store,
		Workers:  2,
		TTL:      time.Hour,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	jobs, err := r.RunDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("RunDir: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2 (non-xml files skipped)", len(jobs))
	}

	for _, job := range jobs {
		if job.Status != StatusDone {
			t.Errorf("job %s status = %s (%s), want done", job.Source, job.Status, job.Error)
			continue
		}
		if job.Result == nil || job.Result.Stats.Products != 2 {
			t.Errorf("job %s result = %+v, want 2 products", job.Source, job.Result)
		}
		if job.CompletedAt == nil {
			t.Errorf("job %s has no completion time", job.Source)
		}
		if job.ExpiresAt.IsZero() {
			t.Errorf("job %s has no TTL stamp", job.Source)
		}

		stored, ok, err := store.Get(context.Background(), job.ID)
		if err != nil || !ok {
			t.Fatalf("store.Get(%s) = %v, %v", job.ID, ok, err)
		}
		if stored.Status != StatusDone {
			t.Errorf("stored job %s status = %s", job.ID, stored.Status)
		}
	}

	// Name order in, same order out.
	if filepath.Base(jobs[0].Source) != "a-reference.xml" || filepath.Base(jobs[1].Source) != "b-short.xml" {
		t.Errorf("job order = %s, %s", jobs[0].Source, jobs[1].Source)
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "../testdata/reference.xml", "good.xml")
	if err := os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := NewRunner(RunnerConfig{
		Pipeline: testPipeline(t),
		Store:    NewMemoryStore(),
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	jobs, err := r.RunFiles(context.Background(), []string{
		filepath.Join(dir, "broken.xml"),
		filepath.Join(dir, "good.xml"),
		filepath.Join(dir, "missing.xml"),
	})
	if err != nil {
		t.Fatalf("RunFiles: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}

	if jobs[0].Status != StatusFailed || jobs[0].Error == "" {
		t.Errorf("broken document job = %+v, want failed", jobs[0])
	}
	if jobs[1].Status != StatusDone {
		t.Errorf("good document job = %s (%s), want done", jobs[1].Status, jobs[1].Error)
	}
	if jobs[2].Status != StatusFailed {
		t.Errorf("missing document job = %s, want failed", jobs[2].Status)
	}
}

func TestRunnerRequiresPipelineAndStore(t *testing.T) {
	if _, err := NewRunner(RunnerConfig{Store: NewMemoryStore()}); err == nil {
		t.Error("NewRunner without pipeline succeeded")
	}
	if _, err := NewRunner(RunnerConfig{Pipeline: testPipeline(t)}); err == nil {
		t.Error("NewRunner without store succeeded")
	}
}
