package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Job is one scheduled workflow run. Either CronExpr or IntervalSeconds
// must be set; interval wins when both are present.
type Job struct {
	ID              string     `json:"id"`
	WorkflowID      string     `json:"workflow_id"`
	CronExpr        string     `json:"cron_expr"`
	IntervalSeconds int        `json:"interval_seconds"`
	Enabled         bool       `json:"enabled"`
	InputText       string     `json:"input_text"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Store persists scheduled jobs in SQLite.
type Store struct {
	db *sql.DB
}

const jobSchema = `
CREATE TABLE IF NOT EXISTS scheduled_jobs (
	id               TEXT PRIMARY KEY,
	workflow_id      TEXT NOT NULL,
	cron_expr        TEXT NOT NULL DEFAULT '',
	interval_seconds INTEGER NOT NULL DEFAULT 0,
	enabled          INTEGER NOT NULL DEFAULT 1,
	input_text       TEXT NOT NULL DEFAULT '',
	last_run         TIMESTAMP,
	created_at       TIMESTAMP NOT NULL
)`

// OpenStore opens or creates the job database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	if _, err := db.Exec(jobSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a job, assigning an ID and creation time when empty.
func (s *Store) Add(ctx context.Context, job *Job) error {
	if job.CronExpr == "" && job.IntervalSeconds <= 0 {
		return fmt.Errorf("either cron_expr or interval_seconds is required")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, workflow_id, cron_expr, interval_seconds, enabled, input_text, last_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.WorkflowID, job.CronExpr, job.IntervalSeconds, job.Enabled, job.InputText, job.LastRun, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}
	return nil
}

// Update replaces a job's schedule and input.
func (s *Store) Update(ctx context.Context, job *Job) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET workflow_id = ?, cron_expr = ?, interval_seconds = ?, enabled = ?, input_text = ?
		WHERE id = ?`,
		job.WorkflowID, job.CronExpr, job.IntervalSeconds, job.Enabled, job.InputText, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	return nil
}

// Delete removes a job by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not found: %s", id)
	}
	return nil
}

// List returns all jobs, most recently created first.
func (s *Store) List(ctx context.Context) ([]Job, error) {
	return s.query(ctx, `SELECT id, workflow_id, cron_expr, interval_seconds, enabled, input_text, last_run, created_at
		FROM scheduled_jobs ORDER BY created_at DESC`)
}

// ListEnabled returns the jobs the scheduler should consider.
func (s *Store) ListEnabled(ctx context.Context) ([]Job, error) {
	return s.query(ctx, `SELECT id, workflow_id, cron_expr, interval_seconds, enabled, input_text, last_run, created_at
		FROM scheduled_jobs WHERE enabled = 1 ORDER BY created_at DESC`)
}

// MarkRun records a job's last run time.
func (s *Store) MarkRun(ctx context.Context, id string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scheduled_jobs SET last_run = ? WHERE id = ?`, t, id)
	if err != nil {
		return fmt.Errorf("failed to mark job run: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var lastRun sql.NullTime
		if err := rows.Scan(&j.ID, &j.WorkflowID, &j.CronExpr, &j.IntervalSeconds, &j.Enabled, &j.InputText, &lastRun, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if lastRun.Valid {
			t := lastRun.Time
			j.LastRun = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
