// Package batch runs the validation pipeline over many documents: a job
// store with in-memory and SQLite backends, a bounded worker pool, and a
// cron-driven scheduler for periodic feed re-validation.
package batch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/metaops/onixcheck"
)

// Status is the lifecycle state of one validation job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one document validation tracked by a Store. Result is set for done
// jobs, Error for failed ones. A job with a non-zero ExpiresAt is dropped
// from the store once that instant passes.
type Job struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Status      Status            `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Result      *onixcheck.Result `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	ExpiresAt   time.Time         `json:"expires_at,omitempty"`
}

// Store persists validation jobs. Put replaces the whole record, so each
// job has a single writer and readers never observe partial updates.
type Store interface {
	Put(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, bool, error)
	List(ctx context.Context) ([]Job, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory job store. Expired jobs are purged lazily on
// every read, so no background janitor is needed for correctness; callers
// that want eager reclamation can run PurgeExpired on a timer.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Job
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]Job),
		now:   time.Now,
	}
}

// Put inserts or replaces one job.
func (s *MemoryStore) Put(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean := strings.TrimSpace(job.ID)
	if clean == "" {
		return errors.New("job id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = clean
	s.items[clean] = job
	return nil
}

// Get returns one job by ID. Expired jobs are reported as absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, false, err
	}

	s.mu.RLock()
	job, ok := s.items[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok || s.expired(job) {
		return Job{}, false, nil
	}
	return job, true, nil
}

// List returns all live jobs ordered by submission time, then ID.
func (s *MemoryStore) List(ctx context.Context) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Job, 0, len(s.items))
	for _, job := range s.items {
		if s.expired(job) {
			continue
		}
		out = append(out, job)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes one job by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, strings.TrimSpace(id))
	return nil
}

// PurgeExpired removes every expired job and returns how many were dropped.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int
	for id, job := range s.items {
		if s.expired(job) {
			delete(s.items, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) expired(job Job) bool {
	return !job.ExpiresAt.IsZero() && !s.now().Before(job.ExpiresAt)
}

var _ Store = (*MemoryStore)(nil)
