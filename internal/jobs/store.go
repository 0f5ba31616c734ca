package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists backfill runs. Implementations must enforce the single
// active run per job name invariant atomically: Create fails with
// CodeConflict when an active run already exists, even under concurrent
// callers. A lookup-then-insert sequence without that guarantee is a race.
type Store interface {
	// GetActiveRun returns the most recently started unfinished run for the
	// job name, or nil when none exists.
	GetActiveRun(ctx context.Context, jobName string) (*BackfillRun, error)
	// Create inserts a new active run. Fails with CodeConflict when an
	// active run for the same job name exists.
	Create(ctx context.Context, run *BackfillRun) error
	// UpdateCursor durably persists a new cursor for an active run.
	UpdateCursor(ctx context.Context, runID uuid.UUID, cursor string) error
	// Finish marks a run complete. Finishing an already finished run is a
	// no-op so crash-retry of the final step stays safe.
	Finish(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error
}
