package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEmpty = errors.New("no jobs ready")

const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateFailed  = "failed"
)

// Job is a one-shot deferred action. Tag is unique across live jobs;
// enqueueing under an existing tag replaces the job.
type Job struct {
	ID          string
	Tag         string
	Kind        string
	Payload     []byte
	State       string
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LeasedUntil time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnsureSchema creates the job table if it doesn't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
  tag TEXT PRIMARY KEY,
  id TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  payload BLOB NOT NULL,
  state TEXT NOT NULL CHECK(state IN ('queued','running','failed')) DEFAULT 'queued',
  attempts INTEGER NOT NULL DEFAULT 0,
  max_attempts INTEGER NOT NULL DEFAULT 5,
  run_at INTEGER NOT NULL,
  leased_until INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_due ON jobs(state, run_at);
`
	_, err := db.Exec(schema)
	return err
}

type Repository interface {
	Enqueue(ctx context.Context, j Job) (string, error)
	Cancel(ctx context.Context, tag string) (bool, error)
	LeaseNext(ctx context.Context, now time.Time, lease time.Duration) (Job, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id, errStr string, now time.Time, delay time.Duration) error
	Fail(ctx context.Context, id, errStr string, now time.Time) error
	RecoverStale(ctx context.Context, now time.Time) (int, error)
	PurgeFailed(ctx context.Context, before time.Time) (int, error)
	Pending(ctx context.Context, tag string) (Job, bool, error)
	ListPending(ctx context.Context) ([]Job, error)
}

type sqliteRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db, now: time.Now} }

// Enqueue stores j under j.Tag. An existing job with the same tag, queued or
// running, is superseded in the same statement and gets a fresh id, so the
// old one can never be completed or retried.
func (r *sqliteRepo) Enqueue(ctx context.Context, j Job) (string, error) {
	id := "job_" + uuid.NewString()
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.Payload == nil {
		j.Payload = []byte{}
	}
	now := r.now().UnixMilli()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO jobs (tag,id,kind,payload,state,attempts,max_attempts,run_at,leased_until,last_error,created_at,updated_at)
VALUES (?,?,?,?,'queued',0,?,?,0,'',?,?)
ON CONFLICT(tag) DO UPDATE SET
  id=excluded.id, kind=excluded.kind, payload=excluded.payload, state='queued', attempts=0,
  max_attempts=excluded.max_attempts, run_at=excluded.run_at, leased_until=0, last_error='',
  created_at=excluded.created_at, updated_at=excluded.updated_at
`, j.Tag, id, j.Kind, j.Payload, j.MaxAttempts, j.RunAt.UnixMilli(), now, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *sqliteRepo) Cancel(ctx context.Context, tag string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE tag=?`, tag)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *sqliteRepo) LeaseNext(ctx context.Context, now time.Time, lease time.Duration) (j Job, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE state='queued' AND run_at <= ?
ORDER BY run_at ASC, created_at ASC
LIMIT 1
`, now.UnixMilli())
	j, err = scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return Job{}, ErrEmpty
	}
	if err != nil {
		return Job{}, err
	}

	j.LeasedUntil = now.Add(lease)
	j.State = StateRunning
	_, err = tx.ExecContext(ctx, `UPDATE jobs SET state='running', leased_until=?, updated_at=? WHERE id=?`,
		j.LeasedUntil.UnixMilli(), now.UnixMilli(), j.ID)
	if err != nil {
		return Job{}, err
	}
	if err = tx.Commit(); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Complete removes a finished one-shot job. It is a no-op when the job was
// cancelled or replaced while running.
func (r *sqliteRepo) Complete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id=?`, id)
	return err
}

func (r *sqliteRepo) Retry(ctx context.Context, id, errStr string, now time.Time, delay time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET attempts = attempts + 1,
    state = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'queued' END,
    run_at = ?,
    leased_until = 0,
    last_error = ?,
    updated_at = ?
WHERE id = ?`, now.Add(delay).UnixMilli(), errStr, now.UnixMilli(), id)
	return err
}

// Fail parks the job as failed without further attempts.
func (r *sqliteRepo) Fail(ctx context.Context, id, errStr string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE jobs SET state='failed', attempts=attempts+1, leased_until=0, last_error=?, updated_at=? WHERE id=?`,
		errStr, now.UnixMilli(), id)
	return err
}

// RecoverStale requeues running jobs whose lease has expired.
func (r *sqliteRepo) RecoverStale(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET state='queued', leased_until=0, updated_at=?
WHERE state='running' AND leased_until < ?`, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *sqliteRepo) PurgeFailed(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE state='failed' AND updated_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Pending returns the queued or running job under tag.
func (r *sqliteRepo) Pending(ctx context.Context, tag string) (Job, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE tag=? AND state<>'failed'`, tag)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	return j, true, nil
}

func (r *sqliteRepo) ListPending(ctx context.Context) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+jobColumns+` FROM jobs WHERE state<>'failed' ORDER BY run_at ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const jobColumns = `id,tag,kind,payload,state,attempts,max_attempts,run_at,leased_until,last_error,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (Job, error) {
	var (
		j                                        Job
		runAt, leasedUntil, createdAt, updatedAt int64
	)
	err := s.Scan(&j.ID, &j.Tag, &j.Kind, &j.Payload, &j.State, &j.Attempts, &j.MaxAttempts,
		&runAt, &leasedUntil, &j.LastError, &createdAt, &updatedAt)
	if err != nil {
		return Job{}, err
	}
	j.RunAt = time.UnixMilli(runAt)
	if leasedUntil > 0 {
		j.LeasedUntil = time.UnixMilli(leasedUntil)
	}
	j.CreatedAt = time.UnixMilli(createdAt)
	j.UpdatedAt = time.UnixMilli(updatedAt)
	return j, nil
}
