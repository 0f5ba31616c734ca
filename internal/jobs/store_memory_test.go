package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "custodian/pkg/domain-errors"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newRun(jobName string, startedAt time.Time) *BackfillRun {
	return &BackfillRun{ID: uuid.New(), JobName: jobName, StartedAt: startedAt}
}

func (s *InMemoryStoreSuite) TestCreateEnforcesSingleActiveRun() {
	now := time.Now().UTC()
	first := s.newRun("job-x", now)
	s.Require().NoError(s.store.Create(s.ctx, first))

	err := s.store.Create(s.ctx, s.newRun("job-x", now.Add(time.Second)))
	s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))

	// Other job names are unaffected.
	s.Require().NoError(s.store.Create(s.ctx, s.newRun("job-y", now)))
}

func (s *InMemoryStoreSuite) TestCreateAllowedAfterFinish() {
	now := time.Now().UTC()
	first := s.newRun("job-x", now)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Finish(s.ctx, first.ID, now.Add(time.Minute)))

	s.Require().NoError(s.store.Create(s.ctx, s.newRun("job-x", now.Add(2*time.Minute))))
}

func (s *InMemoryStoreSuite) TestGetActiveRunReturnsMostRecent() {
	now := time.Now().UTC()
	old := s.newRun("job-x", now.Add(-time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, old))
	s.Require().NoError(s.store.Finish(s.ctx, old.ID, now.Add(-30*time.Minute)))

	current := s.newRun("job-x", now)
	s.Require().NoError(s.store.Create(s.ctx, current))

	active, err := s.store.GetActiveRun(s.ctx, "job-x")
	s.Require().NoError(err)
	s.Require().NotNil(active)
	s.Equal(current.ID, active.ID)
}

func (s *InMemoryStoreSuite) TestGetActiveRunNilWhenNone() {
	active, err := s.store.GetActiveRun(s.ctx, "job-x")
	s.Require().NoError(err)
	s.Nil(active)
}

func (s *InMemoryStoreSuite) TestUpdateCursorRejectsFinishedRun() {
	now := time.Now().UTC()
	run := s.newRun("job-x", now)
	s.Require().NoError(s.store.Create(s.ctx, run))
	s.Require().NoError(s.store.Finish(s.ctx, run.ID, now))

	err := s.store.UpdateCursor(s.ctx, run.ID, "row-1")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *InMemoryStoreSuite) TestUpdateCursorUnknownRun() {
	err := s.store.UpdateCursor(s.ctx, uuid.New(), "row-1")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *InMemoryStoreSuite) TestReturnedRunsAreCopies() {
	now := time.Now().UTC()
	run := s.newRun("job-x", now)
	s.Require().NoError(s.store.Create(s.ctx, run))

	active, err := s.store.GetActiveRun(s.ctx, "job-x")
	s.Require().NoError(err)
	active.Cursor = "mutated-by-caller"

	again, err := s.store.GetActiveRun(s.ctx, "job-x")
	s.Require().NoError(err)
	s.Empty(again.Cursor)
}

func (s *InMemoryStoreSuite) TestConcurrentCreateSingleWinner() {
	now := time.Now().UTC()
	const goroutines = 32

	var wg sync.WaitGroup
	conflicts := make(chan error, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Create(s.ctx, s.newRun("job-x", now)); err != nil {
				conflicts <- err
			}
		}()
	}
	wg.Wait()
	close(conflicts)

	var conflictCount int
	for err := range conflicts {
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		conflictCount++
	}
	s.Equal(goroutines-1, conflictCount)
}
