package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const defaultListLimit = 100

// PostgresStore persists governance events in the audit_events table.
// Append is idempotent per event ID so a replayed batch never duplicates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events
			(id, timestamp, tenant_id, action, subject,
			 dataset, masked_ip, country, row_count, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(), event.Timestamp, event.TenantID, event.Action, event.Subject,
		event.Dataset, event.MaskedIP, event.Country, event.Count, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT timestamp, tenant_id, action, subject,
		       dataset, masked_ip, country, row_count, detail
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(
			&event.Timestamp, &event.TenantID, &event.Action, &event.Subject,
			&event.Dataset, &event.MaskedIP, &event.Country, &event.Count, &event.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
