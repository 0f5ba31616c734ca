// Package orchestrator executes retention passes. One pass per tenant walks
// the governed-dataset descriptors in fixed order, deletes or scrubs
// qualifying rows through the row store, and leaves an immutable
// RetentionRun audit record. Each dataset step commits independently: a
// failed pass keeps its partial counts and already-applied deletions, because
// a partially completed purge is acceptable while a long-lived multi-table
// transaction against hot tables is not.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"custodian/internal/audit"
	"custodian/internal/platform/metrics"
	"custodian/internal/retention/models"
	"custodian/internal/retention/policy"
	"custodian/internal/retention/rowstore"
	dErrors "custodian/pkg/domain-errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RunStore persists retention run records.
type RunStore interface {
	Create(ctx context.Context, run *models.RetentionRun) error
	Update(ctx context.Context, run *models.RetentionRun) error
	List(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]*models.RetentionRun, error)
	FailStale(ctx context.Context, olderThan time.Time, message string, failedAt time.Time) (int64, error)
}

// CutoffResolver is the slice of the policy engine the orchestrator needs.
type CutoffResolver interface {
	Windows(ctx context.Context, tenantID string) (eventDays, rawIPDays int, err error)
	EffectiveCutoffs(ctx context.Context, tenantID, datasetKey string, now time.Time) (policy.Cutoffs, bool, error)
}

// AuditPublisher emits governance audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Orchestrator runs retention passes and answers the audit query surface.
type Orchestrator struct {
	runs           RunStore
	cutoffs        CutoffResolver
	rows           rowstore.Store
	datasets       []models.Dataset
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// Option configures an Orchestrator instance.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(o *Orchestrator) {
		o.auditPublisher = publisher
	}
}

// WithDatasets overrides the governed dataset descriptors; tests use this to
// run against small fixtures.
func WithDatasets(datasets []models.Dataset) Option {
	return func(o *Orchestrator) {
		o.datasets = datasets
	}
}

func New(runs RunStore, cutoffs CutoffResolver, rows rowstore.Store, opts ...Option) (*Orchestrator, error) {
	if runs == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "run store is required")
	}
	if cutoffs == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "cutoff resolver is required")
	}
	if rows == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "row store is required")
	}
	orch := &Orchestrator{
		runs:     runs,
		cutoffs:  cutoffs,
		rows:     rows,
		datasets: models.GovernedDatasets(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch, nil
}

// Run executes one retention pass for the tenant at the given instant.
// Running it twice with unchanged now and policies is a no-op the second
// time: cutoffs are identical and nothing qualifying remains.
func (o *Orchestrator) Run(ctx context.Context, tenantID string, now time.Time) (*models.RetentionRun, error) {
	eventDays, rawIPDays, err := o.cutoffs.Windows(ctx, tenantID)
	if err != nil {
		// No run record: nothing was attempted. The scheduler skips the
		// tenant and alerts.
		return nil, err
	}

	run := &models.RetentionRun{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		StartedAt:          now,
		Status:             models.RunStatusRunning,
		EventRetentionDays: eventDays,
		RawIPRetentionDays: rawIPDays,
		EventCutoff:        now.AddDate(0, 0, -eventDays),
		RawIPCutoff:        now.AddDate(0, 0, -rawIPDays),
		DatasetCounts:      make(map[string]int64, len(o.datasets)),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create retention run")
	}

	for _, dataset := range o.datasets {
		count, err := o.processDataset(ctx, tenantID, dataset, now)
		if err != nil {
			return o.finalize(ctx, run, now, err)
		}
		run.DatasetCounts[dataset.Key] = count
		// Counts are persisted as each dataset commits so a later failure
		// keeps the partial record.
		if err := o.runs.Update(ctx, run); err != nil {
			return o.finalize(ctx, run, now, dErrors.Wrap(err, dErrors.CodeUnavailable, "persist dataset counts"))
		}
		if o.metrics != nil {
			switch dataset.Mode {
			case models.ModeDelete:
				o.metrics.RowsDeletedTotal.WithLabelValues(dataset.Key).Add(float64(count))
			case models.ModeScrub:
				o.metrics.RowsScrubbedTotal.WithLabelValues(dataset.Key).Add(float64(count))
			}
		}
	}

	return o.finalize(ctx, run, now, nil)
}

// processDataset applies one descriptor. Legal holds record an explicit zero.
func (o *Orchestrator) processDataset(ctx context.Context, tenantID string, dataset models.Dataset, now time.Time) (int64, error) {
	cutoffs, held, err := o.cutoffs.EffectiveCutoffs(ctx, tenantID, dataset.Key, now)
	if err != nil {
		return 0, err
	}
	if held {
		o.emit(ctx, audit.Event{
			TenantID: tenantID,
			Action:   audit.ActionLegalHoldHonored,
			Dataset:  dataset.Key,
		})
		return 0, nil
	}

	cutoff := cutoffs.Event
	if dataset.Cutoff == models.CutoffRawIP {
		cutoff = cutoffs.RawIP
	}

	switch dataset.Mode {
	case models.ModeDelete:
		return o.rows.DeleteWhere(ctx, tenantID, dataset.Table, dataset.TimestampColumn, cutoff)
	case models.ModeScrub:
		return o.rows.ScrubColumnWhere(ctx, tenantID, dataset.Table, dataset.TimestampColumn, cutoff, dataset.ScrubColumn)
	default:
		return 0, dErrors.Newf(dErrors.CodeInternal, "unknown dataset mode %q", dataset.Mode)
	}
}

// finalize closes the run record. Already-applied deletions are never rolled
// back; a failed run persists the counts accumulated so far plus the error.
func (o *Orchestrator) finalize(ctx context.Context, run *models.RetentionRun, now time.Time, runErr error) (*models.RetentionRun, error) {
	finishedAt := now
	run.FinishedAt = &finishedAt
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = models.RunStatusSucceeded
	}

	if err := o.runs.Update(ctx, run); err != nil {
		o.logger.ErrorContext(ctx, "failed to finalize retention run",
			"tenant_id", run.TenantID, "run_id", run.ID, "error", err)
		if runErr == nil {
			runErr = dErrors.Wrap(err, dErrors.CodeUnavailable, "finalize retention run")
		}
	}

	if o.metrics != nil {
		o.metrics.RetentionRunsTotal.WithLabelValues(string(run.Status)).Inc()
	}

	action := audit.ActionRetentionRunSucceeded
	if run.Status == models.RunStatusFailed {
		action = audit.ActionRetentionRunFailed
	}
	o.emit(ctx, audit.Event{
		TenantID: run.TenantID,
		Action:   action,
		Count:    totalCount(run.DatasetCounts),
		Detail:   run.Error,
	})

	o.logger.InfoContext(ctx, "retention run finished",
		"tenant_id", run.TenantID,
		"run_id", run.ID,
		"status", run.Status,
		"rows_affected", totalCount(run.DatasetCounts),
	)
	return run, runErr
}

// ListRuns answers the audit query surface: runs for a tenant, newest first,
// optionally bounded by a started-at range. The limit is clamped so no call
// triggers an unbounded scan.
func (o *Orchestrator) ListRuns(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]*models.RetentionRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	out, err := o.runs.List(ctx, tenantID, from, to, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list retention runs")
	}
	return out, nil
}

// RecoverStale marks running records started before olderThan as
// failed-by-timeout. The scheduler calls this before each sweep so a tenant
// whose previous pass died mid-flight is not blocked forever.
func (o *Orchestrator) RecoverStale(ctx context.Context, olderThan, now time.Time) (int64, error) {
	recovered, err := o.runs.FailStale(ctx, olderThan, "timed out: process stopped mid-run", now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "recover stale runs")
	}
	if recovered > 0 {
		o.logger.WarnContext(ctx, "recovered stale retention runs", "count", recovered)
		if o.metrics != nil {
			o.metrics.StaleRunsRecovered.Add(float64(recovered))
		}
	}
	return recovered, nil
}

func (o *Orchestrator) emit(ctx context.Context, event audit.Event) {
	if o.auditPublisher == nil {
		return
	}
	_ = o.auditPublisher.Emit(ctx, event)
}

func totalCount(counts map[string]int64) int64 {
	var total int64
	for _, count := range counts {
		total += count
	}
	return total
}
