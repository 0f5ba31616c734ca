// Package jobs provides named, singleton, resumable batch jobs. A job's
// progress is an opaque last-processed cursor checkpointed after every batch,
// so a crash between batches costs at most one reprocessed batch. Batch steps
// must therefore be idempotent: operate on an explicit (fromCursor, toCursor]
// range, never "the next N rows".
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"custodian/internal/platform/metrics"
	dErrors "custodian/pkg/domain-errors"
)

// Clock abstracts time for testability.
type Clock func() time.Time

// Runner coordinates backfill runs on top of a Store. It owns no job logic;
// callers supply batch steps.
type Runner struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   Clock
}

// Option configures a Runner instance.
type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithClock(clock Clock) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRunner(store Store, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "job store is required")
	}
	runner := &Runner{
		store:  store,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// GetActiveRun returns the unfinished run for jobName, or nil when none.
func (r *Runner) GetActiveRun(ctx context.Context, jobName string) (*BackfillRun, error) {
	run, err := r.store.GetActiveRun(ctx, jobName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "get active run")
	}
	return run, nil
}

// StartRun unconditionally creates a new run. It fails with CodeConflict when
// an active run already exists; schedulers should call ResumeOrStart instead.
func (r *Runner) StartRun(ctx context.Context, jobName string) (*BackfillRun, error) {
	if jobName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "job name is required")
	}
	run := &BackfillRun{
		ID:        uuid.New(),
		JobName:   jobName,
		StartedAt: r.clock().UTC(),
	}
	if err := r.store.Create(ctx, run); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create backfill run")
	}
	r.logger.InfoContext(ctx, "backfill run started", "job", jobName, "run_id", run.ID)
	return run, nil
}

// ResumeOrStart returns the existing active run for jobName, creating one
// when none exists. This is the sole safe entry point for schedulers: the
// create races through the store's uniqueness guarantee, so a concurrent
// loser re-reads the winner's run instead of duplicating it.
func (r *Runner) ResumeOrStart(ctx context.Context, jobName string) (*BackfillRun, error) {
	if existing, err := r.GetActiveRun(ctx, jobName); err != nil {
		return nil, err
	} else if existing != nil {
		r.logger.InfoContext(ctx, "backfill run resumed",
			"job", jobName, "run_id", existing.ID, "cursor", existing.Cursor)
		return existing, nil
	}

	run, err := r.StartRun(ctx, jobName)
	if err == nil {
		return run, nil
	}
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil, err
	}
	// Lost the create race; the winner's run is the one to resume.
	existing, getErr := r.GetActiveRun(ctx, jobName)
	if getErr != nil {
		return nil, getErr
	}
	if existing == nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "active run vanished after conflict")
	}
	return existing, nil
}

// RecordProgress durably persists a new cursor before returning. Callers
// checkpoint once per processed batch; a crash before the checkpoint means
// that batch is reprocessed on resume.
func (r *Runner) RecordProgress(ctx context.Context, run *BackfillRun, lastProcessedID string) (*BackfillRun, error) {
	if run == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "run is required")
	}
	if err := r.store.UpdateCursor(ctx, run.ID, lastProcessedID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "checkpoint write failed")
	}
	updated := *run
	updated.Cursor = lastProcessedID
	if r.metrics != nil {
		r.metrics.JobCheckpointsTotal.WithLabelValues(run.JobName).Inc()
	}
	return &updated, nil
}

// Finish marks the run complete. A subsequent ResumeOrStart for the same job
// name starts a fresh run with an empty cursor.
func (r *Runner) Finish(ctx context.Context, run *BackfillRun) (*BackfillRun, error) {
	if run == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "run is required")
	}
	finishedAt := r.clock().UTC()
	if err := r.store.Finish(ctx, run.ID, finishedAt); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "finish backfill run")
	}
	updated := *run
	updated.FinishedAt = &finishedAt
	r.logger.InfoContext(ctx, "backfill run finished", "job", run.JobName, "run_id", run.ID)
	return &updated, nil
}

// BatchFunc processes one batch starting after cursor and returns the new
// cursor. done signals that no rows remain. Implementations must be
// idempotent for a repeated cursor: the same input cursor may be replayed
// after a crash.
type BatchFunc func(ctx context.Context, cursor string) (nextCursor string, done bool, err error)

// Execute resumes (or starts) the named job and drives step to completion,
// checkpointing after every batch. The cursor never advances past a batch
// whose checkpoint write failed.
func (r *Runner) Execute(ctx context.Context, jobName string, step BatchFunc) error {
	run, err := r.ResumeOrStart(ctx, jobName)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		nextCursor, done, err := step(ctx, run.Cursor)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "batch step failed")
		}
		if done {
			break
		}
		run, err = r.RecordProgress(ctx, run, nextCursor)
		if err != nil {
			return err
		}
	}

	_, err = r.Finish(ctx, run)
	return err
}
