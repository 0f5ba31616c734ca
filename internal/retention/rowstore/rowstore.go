// Package rowstore exposes the generic row-level capability the retention
// pass is built on: tenant-scoped delete-before-cutoff and
// scrub-column-before-cutoff. Every operation is scoped by tenant so a
// retention pass can never touch another tenant's rows.
package rowstore

import (
	"context"
	"time"
)

// Store applies destructive retention operations to governed tables. Both
// operations are idempotent: a second call with the same cutoff affects zero
// rows.
type Store interface {
	// DeleteWhere destroys rows with tsColumn strictly older than cutoff and
	// returns the count deleted.
	DeleteWhere(ctx context.Context, tenantID, table, tsColumn string, cutoff time.Time) (int64, error)
	// ScrubColumnWhere nulls column on rows with tsColumn strictly older
	// than cutoff, skipping rows already scrubbed, and returns the count
	// scrubbed.
	ScrubColumnWhere(ctx context.Context, tenantID, table, tsColumn string, cutoff time.Time, column string) (int64, error)
}
