package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	dErrors "custodian/pkg/domain-errors"
)

func TestPostgresGetActiveRun(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	runID := uuid.New()
	startedAt := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, job_name, started_at, finished_at, cursor`).
		WithArgs("hash-backfill").
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_name", "started_at", "finished_at", "cursor"}).
			AddRow(runID, "hash-backfill", startedAt, nil, "row-42"))

	run, err := store.GetActiveRun(context.Background(), "hash-backfill")
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, runID, run.ID)
	require.Equal(t, "row-42", run.Cursor)
	require.Nil(t, run.FinishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetActiveRunNoRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	mock.ExpectQuery(`SELECT id, job_name, started_at, finished_at, cursor`).
		WithArgs("hash-backfill").
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_name", "started_at", "finished_at", "cursor"}))

	run, err := store.GetActiveRun(context.Background(), "hash-backfill")
	require.NoError(t, err)
	require.Nil(t, run)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateMapsUniqueViolationToConflict(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	run := &BackfillRun{ID: uuid.New(), JobName: "hash-backfill", StartedAt: time.Now().UTC()}

	mock.ExpectExec(`INSERT INTO backfill_runs`).
		WithArgs(run.ID, run.JobName, run.StartedAt, run.Cursor).
		WillReturnError(&pq.Error{Code: "23505"})

	err = store.Create(context.Background(), run)
	require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateCursorOnFinishedRun(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	runID := uuid.New()

	mock.ExpectExec(`UPDATE backfill_runs`).
		WithArgs(runID, "row-7").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.UpdateCursor(context.Background(), runID, "row-7")
	require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}
