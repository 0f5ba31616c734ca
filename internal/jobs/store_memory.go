package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "custodian/pkg/domain-errors"
)

// InMemoryStore keeps backfill runs in process memory. Non-durable; intended
// for tests and single-instance development setups.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*BackfillRun
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[uuid.UUID]*BackfillRun)}
}

func (s *InMemoryStore) GetActiveRun(_ context.Context, jobName string) (*BackfillRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(jobName), nil
}

func (s *InMemoryStore) Create(_ context.Context, run *BackfillRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.activeLocked(run.JobName); existing != nil {
		return dErrors.Newf(dErrors.CodeConflict, "active run already exists for job %q", run.JobName)
	}
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *InMemoryStore) UpdateCursor(_ context.Context, runID uuid.UUID, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "backfill run not found")
	}
	if !run.Active() {
		return dErrors.New(dErrors.CodeConflict, "cannot checkpoint a finished run")
	}
	run.Cursor = cursor
	return nil
}

func (s *InMemoryStore) Finish(_ context.Context, runID uuid.UUID, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "backfill run not found")
	}
	if run.FinishedAt == nil {
		at := finishedAt
		run.FinishedAt = &at
	}
	return nil
}

// activeLocked returns the most recently started unfinished run for jobName.
// Callers must hold at least a read lock.
func (s *InMemoryStore) activeLocked(jobName string) *BackfillRun {
	var latest *BackfillRun
	for _, run := range s.runs {
		if run.JobName != jobName || !run.Active() {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil
	}
	copied := *latest
	return &copied
}
