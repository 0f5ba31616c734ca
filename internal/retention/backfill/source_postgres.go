package backfill

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresEventSource pages the events table for rows missing an ip_hash.
type PostgresEventSource struct {
	db *sql.DB
}

func NewPostgresEventSource(db *sql.DB) *PostgresEventSource {
	return &PostgresEventSource{db: db}
}

func (s *PostgresEventSource) NextBatch(ctx context.Context, afterID string, limit int) ([]EventRecord, error) {
	query := `
		SELECT id, tenant_id, raw_ip
		FROM events
		WHERE id > $1 AND ip_hash IS NULL AND raw_ip IS NOT NULL
		ORDER BY id
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unhashed events: %w", err)
	}
	defer rows.Close()

	var batch []EventRecord
	for rows.Next() {
		var record EventRecord
		if err := rows.Scan(&record.ID, &record.TenantID, &record.RawIP); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		batch = append(batch, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return batch, nil
}

// ApplyHashes writes all hashes in one transaction so a batch is either
// fully applied or not at all.
func (s *PostgresEventSource) ApplyHashes(ctx context.Context, updates []HashUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning hash update transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE events SET ip_hash = $1 WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("preparing hash update: %w", err)
	}
	defer stmt.Close()

	for _, update := range updates {
		if _, err := stmt.ExecContext(ctx, update.IPHash, update.ID); err != nil {
			return fmt.Errorf("updating ip hash for event %s: %w", update.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing hash updates: %w", err)
	}
	return nil
}
