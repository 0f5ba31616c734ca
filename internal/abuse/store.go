package abuse

import (
	"context"
	"time"
)

// SubjectState is the windowed attempt counter for one pseudonymous subject.
type SubjectState struct {
	Count       int        `json:"count"`
	WindowStart time.Time  `json:"window_start"`
	BanUntil    *time.Time `json:"ban_until,omitempty"`
	// ExpiresAt is when the state is dead either way (window and any ban
	// both elapsed); stores may evict entries past it.
	ExpiresAt time.Time `json:"expires_at"`
}

// Store holds subject state. Implementations must apply Update atomically
// per subject: contention concentrates on a handful of abusive subjects, so
// per-key serialization (a per-key lock, or a CAS retry against a shared
// cache) is required, never one global lock.
type Store interface {
	Get(ctx context.Context, subject string) (*SubjectState, error)
	// Update atomically transforms the subject's state. fn receives nil when
	// no state exists; returning nil removes the entry.
	Update(ctx context.Context, subject string, fn func(*SubjectState) *SubjectState) (*SubjectState, error)
	// Reset clears all subject state. Administrative/test escape hatch only.
	Reset(ctx context.Context) error
}
