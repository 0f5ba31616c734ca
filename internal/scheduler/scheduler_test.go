package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	dErrors "custodian/pkg/domain-errors"

	"custodian/internal/retention/models"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeTenantLister struct {
	ids []string
	err error
}

func (f *fakeTenantLister) ListIDs(context.Context) ([]string, error) {
	return f.ids, f.err
}

type fakeRunner struct {
	mu             sync.Mutex
	ran            []string
	errs           map[string]error
	staleOlderThan time.Time
	staleCalls     int
}

func (f *fakeRunner) Run(_ context.Context, tenantID string, now time.Time) (*models.RetentionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[tenantID]; err != nil {
		return nil, err
	}
	f.ran = append(f.ran, tenantID)
	return &models.RetentionRun{ID: uuid.New(), TenantID: tenantID, StartedAt: now, Status: models.RunStatusSucceeded}, nil
}

func (f *fakeRunner) RecoverStale(_ context.Context, olderThan, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleCalls++
	f.staleOlderThan = olderThan
	return 0, nil
}

func (f *fakeRunner) ranTenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

func TestSweepRunsEveryTenant(t *testing.T) {
	runner := &fakeRunner{}
	sched, err := New(
		&fakeTenantLister{ids: []string{"tenant-a", "tenant-b", "tenant-c"}},
		runner,
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	sched.Sweep(context.Background())

	require.ElementsMatch(t, []string{"tenant-a", "tenant-b", "tenant-c"}, runner.ranTenants())
}

func TestSweepRecoversStaleRunsFirst(t *testing.T) {
	runner := &fakeRunner{}
	sched, err := New(
		&fakeTenantLister{ids: nil},
		runner,
		WithClock(func() time.Time { return testNow }),
		WithStaleAfter(30*time.Minute),
	)
	require.NoError(t, err)

	sched.Sweep(context.Background())

	require.Equal(t, 1, runner.staleCalls)
	require.True(t, runner.staleOlderThan.Equal(testNow.Add(-30*time.Minute)))
}

func TestSweepFailingTenantDoesNotStopOthers(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"tenant-b": dErrors.New(dErrors.CodeUnavailable, "store down"),
	}}
	sched, err := New(
		&fakeTenantLister{ids: []string{"tenant-a", "tenant-b", "tenant-c"}},
		runner,
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	sched.Sweep(context.Background())

	require.ElementsMatch(t, []string{"tenant-a", "tenant-c"}, runner.ranTenants())
}

func TestSweepSkipsTenantWithoutWindows(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"tenant-b": dErrors.New(dErrors.CodeConfiguration, "no retention windows configured"),
	}}
	sched, err := New(
		&fakeTenantLister{ids: []string{"tenant-a", "tenant-b"}},
		runner,
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	sched.Sweep(context.Background())

	require.ElementsMatch(t, []string{"tenant-a"}, runner.ranTenants())
}

type fakeBackfill struct {
	ran bool
}

func (f *fakeBackfill) Run(context.Context) error {
	f.ran = true
	return nil
}

func TestRunResumesBackfillThenSweeps(t *testing.T) {
	runner := &fakeRunner{}
	backfill := &fakeBackfill{}
	sched, err := New(
		&fakeTenantLister{ids: []string{"tenant-a"}},
		runner,
		WithClock(func() time.Time { return testNow }),
		WithBackfill(backfill),
		WithInterval(time.Hour),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(runner.ranTenants()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.True(t, backfill.ran)
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(nil, &fakeRunner{})
	require.Error(t, err)
	_, err = New(&fakeTenantLister{}, nil)
	require.Error(t, err)
}
