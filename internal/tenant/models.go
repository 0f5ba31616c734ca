package tenant

import "time"

// Settings carries the per-tenant governance defaults. Dataset-level
// retention policies override these; a tenant with no settings and no policy
// row is a configuration error, never an implicit "keep forever".
type Settings struct {
	TenantID string
	Name     string
	// EventRetentionDays bounds how long full event records are kept.
	EventRetentionDays int
	// RawIPRetentionDays bounds how long raw IP columns survive before they
	// are scrubbed down to their pseudonymous hash. Usually shorter than
	// EventRetentionDays.
	RawIPRetentionDays int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
