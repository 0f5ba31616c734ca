package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"custodian/internal/retention/models"
)

// PostgresStore persists retention runs in PostgreSQL. Per-dataset counts are
// stored as a JSONB document keyed by dataset key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, run *models.RetentionRun) error {
	counts, err := marshalCounts(run.DatasetCounts)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO retention_runs
			(id, tenant_id, started_at, finished_at, status,
			 event_retention_days, raw_ip_retention_days,
			 event_cutoff, raw_ip_cutoff, dataset_counts, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.TenantID, run.StartedAt, run.FinishedAt, string(run.Status),
		run.EventRetentionDays, run.RawIPRetentionDays,
		run.EventCutoff, run.RawIPCutoff, counts, run.Error,
	)
	if err != nil {
		return fmt.Errorf("create retention run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, run *models.RetentionRun) error {
	counts, err := marshalCounts(run.DatasetCounts)
	if err != nil {
		return err
	}
	query := `
		UPDATE retention_runs
		SET finished_at = $2, status = $3, dataset_counts = $4, error_message = $5
		WHERE id = $1
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.FinishedAt, string(run.Status), counts, run.Error,
	)
	if err != nil {
		return fmt.Errorf("update retention run: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]*models.RetentionRun, error) {
	query := `
		SELECT id, tenant_id, started_at, finished_at, status,
		       event_retention_days, raw_ip_retention_days,
		       event_cutoff, raw_ip_cutoff, dataset_counts, error_message
		FROM retention_runs
		WHERE tenant_id = $1
	`
	args := []any{tenantID}
	if from != nil {
		args = append(args, *from)
		query += " AND started_at >= $" + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += " AND started_at <= $" + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list retention runs: %w", err)
	}
	defer rows.Close()

	var out []*models.RetentionRun
	for rows.Next() {
		run, err := scanRetentionRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan retention run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention runs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FailStale(ctx context.Context, olderThan time.Time, message string, failedAt time.Time) (int64, error) {
	query := `
		UPDATE retention_runs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE status = $4 AND started_at < $5
	`
	result, err := s.db.ExecContext(ctx, query,
		string(models.RunStatusFailed), message, failedAt,
		string(models.RunStatusRunning), olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale retention runs: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stale rows affected: %w", err)
	}
	return updated, nil
}

func marshalCounts(counts map[string]int64) ([]byte, error) {
	if counts == nil {
		counts = map[string]int64{}
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return nil, fmt.Errorf("marshal dataset counts: %w", err)
	}
	return data, nil
}

type retentionRunRow interface {
	Scan(dest ...any) error
}

func scanRetentionRun(row retentionRunRow) (*models.RetentionRun, error) {
	var run models.RetentionRun
	var finishedAt sql.NullTime
	var status string
	var counts []byte
	if err := row.Scan(
		&run.ID, &run.TenantID, &run.StartedAt, &finishedAt, &status,
		&run.EventRetentionDays, &run.RawIPRetentionDays,
		&run.EventCutoff, &run.RawIPCutoff, &counts, &run.Error,
	); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	run.Status = models.RunStatus(status)
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &run.DatasetCounts); err != nil {
			return nil, fmt.Errorf("unmarshal dataset counts: %w", err)
		}
	}
	return &run, nil
}
