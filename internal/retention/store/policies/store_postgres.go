package policies

import (
	"context"
	"database/sql"
	"fmt"

	"custodian/internal/retention/models"
)

// PostgresStore persists retention policies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, datasetKey string) (*models.RetentionPolicy, error) {
	query := `
		SELECT tenant_id, dataset_key, retention_days, raw_ip_retention_days,
		       legal_hold, legal_hold_reason, legal_hold_since
		FROM retention_policies
		WHERE tenant_id = $1 AND dataset_key = $2
	`
	var policy models.RetentionPolicy
	var holdSince sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tenantID, datasetKey).Scan(
		&policy.TenantID,
		&policy.DatasetKey,
		&policy.RetentionDays,
		&policy.RawIPRetentionDays,
		&policy.LegalHold,
		&policy.LegalHoldReason,
		&holdSince,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get retention policy: %w", err)
	}
	if holdSince.Valid {
		policy.LegalHoldSince = &holdSince.Time
	}
	return &policy, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, policy *models.RetentionPolicy) error {
	query := `
		INSERT INTO retention_policies
			(tenant_id, dataset_key, retention_days, raw_ip_retention_days,
			 legal_hold, legal_hold_reason, legal_hold_since)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, dataset_key) DO UPDATE SET
			retention_days = EXCLUDED.retention_days,
			raw_ip_retention_days = EXCLUDED.raw_ip_retention_days,
			legal_hold = EXCLUDED.legal_hold,
			legal_hold_reason = EXCLUDED.legal_hold_reason,
			legal_hold_since = EXCLUDED.legal_hold_since
	`
	_, err := s.db.ExecContext(ctx, query,
		policy.TenantID,
		policy.DatasetKey,
		policy.RetentionDays,
		policy.RawIPRetentionDays,
		policy.LegalHold,
		policy.LegalHoldReason,
		policy.LegalHoldSince,
	)
	if err != nil {
		return fmt.Errorf("upsert retention policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*models.RetentionPolicy, error) {
	query := `
		SELECT tenant_id, dataset_key, retention_days, raw_ip_retention_days,
		       legal_hold, legal_hold_reason, legal_hold_since
		FROM retention_policies
		WHERE tenant_id = $1
		ORDER BY dataset_key
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list retention policies: %w", err)
	}
	defer rows.Close()

	var out []*models.RetentionPolicy
	for rows.Next() {
		var policy models.RetentionPolicy
		var holdSince sql.NullTime
		if err := rows.Scan(
			&policy.TenantID,
			&policy.DatasetKey,
			&policy.RetentionDays,
			&policy.RawIPRetentionDays,
			&policy.LegalHold,
			&policy.LegalHoldReason,
			&holdSince,
		); err != nil {
			return nil, fmt.Errorf("scan retention policy: %w", err)
		}
		if holdSince.Valid {
			policy.LegalHoldSince = &holdSince.Time
		}
		out = append(out, &policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention policies: %w", err)
	}
	return out, nil
}
