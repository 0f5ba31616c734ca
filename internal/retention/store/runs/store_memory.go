// Package runs persists retention run audit records.
package runs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"custodian/internal/retention/models"
	dErrors "custodian/pkg/domain-errors"
)

// InMemoryStore keeps retention runs in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*models.RetentionRun
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[uuid.UUID]*models.RetentionRun)}
}

func (s *InMemoryStore) Create(_ context.Context, run *models.RetentionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "retention run already exists")
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, run *models.RetentionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return dErrors.New(dErrors.CodeNotFound, "retention run not found")
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

// List returns runs for the tenant newest-first, bounded by limit. The
// optional from/to bounds filter on StartedAt.
func (s *InMemoryStore) List(_ context.Context, tenantID string, from, to *time.Time, limit int) ([]*models.RetentionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.RetentionRun
	for _, run := range s.runs {
		if run.TenantID != tenantID {
			continue
		}
		if from != nil && run.StartedAt.Before(*from) {
			continue
		}
		if to != nil && run.StartedAt.After(*to) {
			continue
		}
		out = append(out, copyRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FailStale marks running records started before olderThan as failed with the
// given message and returns how many were updated.
func (s *InMemoryStore) FailStale(_ context.Context, olderThan time.Time, message string, failedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, run := range s.runs {
		if run.Status != models.RunStatusRunning || !run.StartedAt.Before(olderThan) {
			continue
		}
		run.Status = models.RunStatusFailed
		run.Error = message
		at := failedAt
		run.FinishedAt = &at
		updated++
	}
	return updated, nil
}

func copyRun(run *models.RetentionRun) *models.RetentionRun {
	copied := *run
	if run.DatasetCounts != nil {
		copied.DatasetCounts = make(map[string]int64, len(run.DatasetCounts))
		for key, count := range run.DatasetCounts {
			copied.DatasetCounts[key] = count
		}
	}
	if run.FinishedAt != nil {
		at := *run.FinishedAt
		copied.FinishedAt = &at
	}
	return &copied
}
