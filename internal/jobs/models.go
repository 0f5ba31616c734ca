package jobs

import (
	"time"

	"github.com/google/uuid"
)

// BackfillRun is one resumable execution of a named batch job. At most one
// active run (FinishedAt == nil) may exist per job name; that invariant is
// enforced by the store, not by callers.
type BackfillRun struct {
	ID         uuid.UUID
	JobName    string
	StartedAt  time.Time
	FinishedAt *time.Time
	// Cursor is the last processed identifier, opaque to the runner. Empty
	// means no batch has completed yet.
	Cursor string
}

// Active reports whether the run is still in progress.
func (r *BackfillRun) Active() bool {
	return r.FinishedAt == nil
}
