package tenant

import "context"

// Store persists tenant settings. Get returns nil when the tenant has no
// settings row so callers can distinguish "unset" from failure.
type Store interface {
	Get(ctx context.Context, tenantID string) (*Settings, error)
	Upsert(ctx context.Context, settings *Settings) error
	// ListIDs returns every tenant id, for scheduler sweeps.
	ListIDs(ctx context.Context) ([]string, error)
}
