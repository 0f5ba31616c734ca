package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// defaultBatchSize bounds each delete/update statement so retention never
// holds long locks on hot tables. There is no transaction spanning batches;
// a partially completed purge is acceptable, a long-lived lock is not.
const defaultBatchSize = 5000

// PostgresStore applies retention operations against PostgreSQL in bounded
// batches. Table and column names come from the static dataset descriptors,
// never from callers, but are identifier-quoted regardless.
type PostgresStore struct {
	db        *sql.DB
	batchSize int
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithBatchSize overrides the per-statement row bound.
func WithBatchSize(size int) PostgresOption {
	return func(s *PostgresStore) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	store := &PostgresStore{db: db, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *PostgresStore) DeleteWhere(ctx context.Context, tenantID, table, tsColumn string, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE ctid IN (
			SELECT ctid FROM %s
			WHERE tenant_id = $1 AND %s < $2
			LIMIT $3
		)`,
		pq.QuoteIdentifier(table),
		pq.QuoteIdentifier(table),
		pq.QuoteIdentifier(tsColumn),
	)

	var total int64
	for {
		result, err := s.db.ExecContext(ctx, query, tenantID, cutoff, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("delete from %s: %w", table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("delete rows affected: %w", err)
		}
		total += affected
		if affected < int64(s.batchSize) {
			return total, nil
		}
	}
}

func (s *PostgresStore) ScrubColumnWhere(ctx context.Context, tenantID, table, tsColumn string, cutoff time.Time, column string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = NULL
		WHERE ctid IN (
			SELECT ctid FROM %s
			WHERE tenant_id = $1 AND %s < $2 AND %s IS NOT NULL
			LIMIT $3
		)`,
		pq.QuoteIdentifier(table),
		pq.QuoteIdentifier(column),
		pq.QuoteIdentifier(table),
		pq.QuoteIdentifier(tsColumn),
		pq.QuoteIdentifier(column),
	)

	var total int64
	for {
		result, err := s.db.ExecContext(ctx, query, tenantID, cutoff, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("scrub %s.%s: %w", table, column, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("scrub rows affected: %w", err)
		}
		total += affected
		if affected < int64(s.batchSize) {
			return total, nil
		}
	}
}
