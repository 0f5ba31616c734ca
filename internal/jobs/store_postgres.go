package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	dErrors "custodian/pkg/domain-errors"
)

// PostgresStore persists backfill runs in PostgreSQL. The single active run
// per job name invariant is enforced by a partial unique index:
//
//	CREATE UNIQUE INDEX backfill_runs_active_job
//	    ON backfill_runs (job_name) WHERE finished_at IS NULL;
//
// This store is pure I/O; resume/start decisions belong in the Runner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetActiveRun(ctx context.Context, jobName string) (*BackfillRun, error) {
	query := `
		SELECT id, job_name, started_at, finished_at, cursor
		FROM backfill_runs
		WHERE job_name = $1 AND finished_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`
	run, err := scanBackfillRun(s.db.QueryRowContext(ctx, query, jobName))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) Create(ctx context.Context, run *BackfillRun) error {
	query := `
		INSERT INTO backfill_runs (id, job_name, started_at, finished_at, cursor)
		VALUES ($1, $2, $3, NULL, $4)
	`
	_, err := s.db.ExecContext(ctx, query, run.ID, run.JobName, run.StartedAt, run.Cursor)
	if err != nil {
		if isUniqueViolation(err) {
			return dErrors.Newf(dErrors.CodeConflict, "active run already exists for job %q", run.JobName)
		}
		return fmt.Errorf("create backfill run: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCursor(ctx context.Context, runID uuid.UUID, cursor string) error {
	query := `
		UPDATE backfill_runs
		SET cursor = $2
		WHERE id = $1 AND finished_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, runID, cursor)
	if err != nil {
		return fmt.Errorf("update cursor: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cursor rows affected: %w", err)
	}
	if rows == 0 {
		return dErrors.New(dErrors.CodeConflict, "cannot checkpoint a finished or missing run")
	}
	return nil
}

func (s *PostgresStore) Finish(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error {
	query := `
		UPDATE backfill_runs
		SET finished_at = $2
		WHERE id = $1 AND finished_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, runID, finishedAt); err != nil {
		return fmt.Errorf("finish backfill run: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

type backfillRow interface {
	Scan(dest ...any) error
}

func scanBackfillRun(row backfillRow) (*BackfillRun, error) {
	var run BackfillRun
	var finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.JobName, &run.StartedAt, &finishedAt, &run.Cursor); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}
