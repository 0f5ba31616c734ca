package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"custodian/internal/retention/models"
	"custodian/internal/retention/policy"
	"custodian/internal/retention/rowstore"
	"custodian/internal/retention/store/policies"
	"custodian/internal/retention/store/runs"
	"custodian/internal/tenant"
	dErrors "custodian/pkg/domain-errors"
)

var testNow = time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

type fixture struct {
	orch     *Orchestrator
	runs     *runs.InMemoryStore
	rows     *rowstore.InMemoryStore
	policies *policies.InMemoryStore
	tenants  *tenant.InMemoryStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		runs:     runs.NewInMemoryStore(),
		rows:     rowstore.NewInMemoryStore(),
		policies: policies.NewInMemoryStore(),
		tenants:  tenant.NewInMemoryStore(),
	}
	engine, err := policy.New(f.policies, f.tenants)
	require.NoError(t, err)
	f.orch, err = New(f.runs, engine, f.rows, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) seedTenant(t *testing.T, tenantID string, eventDays, rawIPDays int) {
	t.Helper()
	require.NoError(t, f.tenants.Upsert(context.Background(), &tenant.Settings{
		TenantID:           tenantID,
		EventRetentionDays: eventDays,
		RawIPRetentionDays: rawIPDays,
	}))
}

func strPtr(s string) *string { return &s }

// seedRows populates every governed table with one old row (past both
// cutoffs), one mid-age row (past the raw-IP cutoff only) and one fresh row.
func (f *fixture) seedRows(tenantID string) {
	old := testNow.AddDate(0, 0, -120)
	mid := testNow.AddDate(0, 0, -45)
	fresh := testNow.AddDate(0, 0, -1)

	for _, table := range []string{"events", "security_events", "alerts", "audit_logs"} {
		for _, ts := range []time.Time{old, mid, fresh} {
			f.rows.Insert(table, rowstore.Row{
				TenantID:  tenantID,
				Timestamp: ts,
				Columns: map[string]*string{
					"ip_address": strPtr("203.0.113.77"),
					"ip_hash":    strPtr("decafbad"),
				},
			})
		}
	}
}

func TestRunDeletesAndScrubs(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "t1", 90, 30)
	f.seedRows("t1")
	ctx := context.Background()

	run, err := f.orch.Run(ctx, "t1", testNow)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSucceeded, run.Status)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, 90, run.EventRetentionDays)
	require.Equal(t, 30, run.RawIPRetentionDays)

	// Old rows destroyed from deletion datasets.
	require.EqualValues(t, 1, run.DatasetCounts["events"])
	require.EqualValues(t, 1, run.DatasetCounts["security_events"])
	require.Equal(t, 2, f.rows.CountRows("events", "t1"))

	// Mid-age rows scrubbed; deletion already removed the old security
	// event, so only the mid-age one has a raw IP left to scrub.
	require.EqualValues(t, 1, run.DatasetCounts["security_events_ip"])
	require.EqualValues(t, 2, run.DatasetCounts["alerts_ip"])
	require.EqualValues(t, 2, run.DatasetCounts["audit_logs_ip"])

	// The raw value is gone, the pseudonymous hash survives.
	require.Nil(t, f.rows.ColumnValue("alerts", "t1", "ip_address", 0))
	require.NotNil(t, f.rows.ColumnValue("alerts", "t1", "ip_hash", 0))
	// Fresh rows keep their raw IP.
	require.NotNil(t, f.rows.ColumnValue("alerts", "t1", "ip_address", 2))
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "t1", 90, 30)
	f.seedRows("t1")
	ctx := context.Background()

	_, err := f.orch.Run(ctx, "t1", testNow)
	require.NoError(t, err)

	second, err := f.orch.Run(ctx, "t1", testNow)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSucceeded, second.Status)
	for dataset, count := range second.DatasetCounts {
		require.Zero(t, count, "dataset %s", dataset)
	}
}

func TestRunScopedToTenant(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "t1", 90, 30)
	f.seedRows("t1")
	f.seedRows("t2")
	ctx := context.Background()

	_, err := f.orch.Run(ctx, "t1", testNow)
	require.NoError(t, err)

	// The other tenant's rows are untouched.
	require.Equal(t, 3, f.rows.CountRows("events", "t2"))
	require.NotNil(t, f.rows.ColumnValue("alerts", "t2", "ip_address", 0))
}

func TestRunHonorsLegalHold(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "t1", 90, 30)
	f.seedRows("t1")
	ctx := context.Background()

	require.NoError(t, f.policies.Upsert(ctx, &models.RetentionPolicy{
		TenantID:        "t1",
		DatasetKey:      "events",
		LegalHold:       true,
		LegalHoldReason: "subpoena 44-se",
	}))

	run, err := f.orch.Run(ctx, "t1", testNow)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSucceeded, run.Status)
	require.Zero(t, run.DatasetCounts["events"])
	require.Equal(t, 3, f.rows.CountRows("events", "t1"))
	// Unheld datasets still processed.
	require.EqualValues(t, 1, run.DatasetCounts["security_events"])
}

func TestRunMissingConfigCreatesNoRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Run(ctx, "ghost", testNow)
	require.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))

	listed, err := f.orch.ListRuns(ctx, "ghost", nil, nil, 10)
	require.NoError(t, err)
	require.Empty(t, listed)
}

// failingRowStore fails on a chosen table; earlier datasets commit normally.
type failingRowStore struct {
	*rowstore.InMemoryStore
	failTable string
}

func (s *failingRowStore) DeleteWhere(ctx context.Context, tenantID, table, tsColumn string, cutoff time.Time) (int64, error) {
	if table == s.failTable {
		return 0, errors.New("connection reset")
	}
	return s.InMemoryStore.DeleteWhere(ctx, tenantID, table, tsColumn, cutoff)
}

func TestRunFailureKeepsPartialCounts(t *testing.T) {
	f := newFixture(t)
	failing := &failingRowStore{InMemoryStore: f.rows, failTable: "security_events"}
	engine, err := policy.New(f.policies, f.tenants)
	require.NoError(t, err)
	orch, err := New(f.runs, engine, failing)
	require.NoError(t, err)

	f.seedTenant(t, "t1", 90, 30)
	f.seedRows("t1")
	ctx := context.Background()

	run, err := orch.Run(ctx, "t1", testNow)
	require.Error(t, err)
	require.Equal(t, models.RunStatusFailed, run.Status)
	require.Contains(t, run.Error, "connection reset")
	require.NotNil(t, run.FinishedAt)

	// The first dataset committed before the failure and stays applied.
	require.EqualValues(t, 1, run.DatasetCounts["events"])
	require.Equal(t, 2, f.rows.CountRows("events", "t1"))
	// Later datasets were never reached.
	require.NotContains(t, run.DatasetCounts, "alerts_ip")

	// The failed record is persisted for the audit surface.
	listed, err := orch.ListRuns(ctx, "t1", nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, models.RunStatusFailed, listed[0].Status)
}

func TestListRunsNewestFirstAndBounded(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "t1", 90, 30)
	ctx := context.Background()

	for day := range 5 {
		_, err := f.orch.Run(ctx, "t1", testNow.AddDate(0, 0, day))
		require.NoError(t, err)
	}

	listed, err := f.orch.ListRuns(ctx, "t1", nil, nil, 3)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i := 1; i < len(listed); i++ {
		require.True(t, listed[i].StartedAt.Before(listed[i-1].StartedAt))
	}

	// Range filter on started-at.
	from := testNow.AddDate(0, 0, 3)
	listed, err = f.orch.ListRuns(ctx, "t1", &from, nil, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestRecoverStaleFailsAbandonedRuns(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "t1", 90, 30)
	ctx := context.Background()

	// Simulate a run abandoned by a crashed process.
	stale := &models.RetentionRun{
		ID:        uuid.New(),
		TenantID:  "t1",
		StartedAt: testNow.Add(-12 * time.Hour),
		Status:    models.RunStatusRunning,
	}
	require.NoError(t, f.runs.Create(ctx, stale))

	recovered, err := f.orch.RecoverStale(ctx, testNow.Add(-6*time.Hour), testNow)
	require.NoError(t, err)
	require.EqualValues(t, 1, recovered)

	listed, err := f.orch.ListRuns(ctx, "t1", nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, models.RunStatusFailed, listed[0].Status)
	require.Contains(t, listed[0].Error, "timed out")
}
