package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metaops/onixcheck"

	_ "modernc.org/sqlite"
)

const jobSQLiteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	completed_at TEXT,
	result BLOB,
	error TEXT,
	expires_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_expires ON jobs(expires_at);`

// SQLiteStoreConfig configures the SQLite job store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists validation jobs in SQLite, surviving process
// restarts. Results are stored as JSON blobs.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite-backed job store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("job store sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("job sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("job sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec(jobSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("job sqlite store create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put inserts or replaces one job.
func (s *SQLiteStore) Put(ctx context.Context, job Job) error {
	clean := strings.TrimSpace(job.ID)
	if clean == "" {
		return errors.New("job id is required")
	}

	var result []byte
	if job.Result != nil {
		encoded, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("job sqlite store encode result: %w", err)
		}
		result = encoded
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id, source, status, submitted_at, completed_at, result, error, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source = excluded.source,
	status = excluded.status,
	submitted_at = excluded.submitted_at,
	completed_at = excluded.completed_at,
	result = excluded.result,
	error = excluded.error,
	expires_at = excluded.expires_at`,
		clean,
		job.Source,
		string(job.Status),
		encodeTime(job.SubmittedAt),
		encodeTimePtr(job.CompletedAt),
		result,
		job.Error,
		encodeTime(job.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("job sqlite store put: %w", err)
	}
	return nil
}

// Get returns one job by ID. Expired jobs are reported as absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Job, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, source, status, submitted_at, completed_at, result, error, expires_at
FROM jobs
WHERE id = ?`, strings.TrimSpace(id))

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("job sqlite store get: %w", err)
	}
	if s.expired(job) {
		return Job{}, false, nil
	}
	return job, true, nil
}

// List returns all live jobs in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, status, submitted_at, completed_at, result, error, expires_at
FROM jobs
ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("job sqlite store list: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("job sqlite store list scan: %w", err)
		}
		if s.expired(job) {
			continue
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job sqlite store list rows: %w", err)
	}
	return jobs, nil
}

// Delete removes one job by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", strings.TrimSpace(id)); err != nil {
		return fmt.Errorf("job sqlite store delete: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired job and returns how many were dropped.
// Expiry is compared in Go: RFC3339Nano strings are not lexicographically
// ordered once trailing zeros are trimmed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, expires_at FROM jobs WHERE expires_at IS NOT NULL AND expires_at != ''")
	if err != nil {
		return 0, fmt.Errorf("job sqlite store purge scan: %w", err)
	}
	defer rows.Close()

	now := s.now()
	var expired []string
	for rows.Next() {
		var id, expiresAt string
		if err := rows.Scan(&id, &expiresAt); err != nil {
			return 0, fmt.Errorf("job sqlite store purge scan: %w", err)
		}
		t, err := decodeTime(expiresAt)
		if err != nil {
			return 0, fmt.Errorf("job sqlite store purge decode: %w", err)
		}
		if !t.IsZero() && !now.Before(t) {
			expired = append(expired, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("job sqlite store purge rows: %w", err)
	}

	for _, id := range expired {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("job sqlite store purge delete: %w", err)
		}
	}
	return len(expired), nil
}

func (s *SQLiteStore) expired(job Job) bool {
	return !job.ExpiresAt.IsZero() && !s.now().Before(job.ExpiresAt)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job         Job
		status      string
		submittedAt string
		completedAt sql.NullString
		result      []byte
		errText     sql.NullString
		expiresAt   sql.NullString
	)
	if err := row.Scan(&job.ID, &job.Source, &status, &submittedAt, &completedAt, &result, &errText, &expiresAt); err != nil {
		return Job{}, err
	}

	job.Status = Status(status)
	job.Error = errText.String

	var err error
	if job.SubmittedAt, err = decodeTime(submittedAt); err != nil {
		return Job{}, err
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := decodeTime(completedAt.String)
		if err != nil {
			return Job{}, err
		}
		job.CompletedAt = &t
	}
	if expiresAt.Valid && expiresAt.String != "" {
		if job.ExpiresAt, err = decodeTime(expiresAt.String); err != nil {
			return Job{}, err
		}
	}
	if len(result) > 0 {
		var r onixcheck.Result
		if err := json.Unmarshal(result, &r); err != nil {
			return Job{}, err
		}
		job.Result = &r
	}
	return job, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

var _ Store = (*SQLiteStore)(nil)
