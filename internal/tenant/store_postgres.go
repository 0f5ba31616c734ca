package tenant

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists tenant settings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, tenantID string) (*Settings, error) {
	query := `
		SELECT tenant_id, name, event_retention_days, raw_ip_retention_days, created_at, updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`
	var settings Settings
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&settings.TenantID,
		&settings.Name,
		&settings.EventRetentionDays,
		&settings.RawIPRetentionDays,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant settings: %w", err)
	}
	return &settings, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, settings *Settings) error {
	query := `
		INSERT INTO tenant_settings (tenant_id, name, event_retention_days, raw_ip_retention_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			name = EXCLUDED.name,
			event_retention_days = EXCLUDED.event_retention_days,
			raw_ip_retention_days = EXCLUDED.raw_ip_retention_days,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		settings.TenantID,
		settings.Name,
		settings.EventRetentionDays,
		settings.RawIPRetentionDays,
		settings.CreatedAt,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tenant settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM tenant_settings ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenant ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant ids: %w", err)
	}
	return ids, nil
}
