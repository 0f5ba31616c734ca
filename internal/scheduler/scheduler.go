// Package scheduler drives the periodic retention sweep. Each tick it
// recovers stale retention runs, then fans out one retention run per
// tenant with bounded concurrency.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	dErrors "custodian/pkg/domain-errors"

	"custodian/internal/retention/models"
)

const (
	defaultConcurrency = 4
	defaultInterval    = time.Hour
	defaultStaleAfter  = 30 * time.Minute
)

type TenantLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

type RetentionRunner interface {
	Run(ctx context.Context, tenantID string, now time.Time) (*models.RetentionRun, error)
	RecoverStale(ctx context.Context, olderThan, now time.Time) (int64, error)
}

// BackfillRunner resumes any interrupted batch job. Run blocks until the
// job completes or fails.
type BackfillRunner interface {
	Run(ctx context.Context) error
}

type Clock func() time.Time

type Scheduler struct {
	tenants     TenantLister
	runner      RetentionRunner
	backfill    BackfillRunner
	interval    time.Duration
	staleAfter  time.Duration
	concurrency int
	logger      *slog.Logger
	clock       Clock
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithStaleAfter(staleAfter time.Duration) Option {
	return func(s *Scheduler) {
		if staleAfter > 0 {
			s.staleAfter = staleAfter
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithBackfill registers a batch job to resume before the first sweep.
func WithBackfill(backfill BackfillRunner) Option {
	return func(s *Scheduler) {
		s.backfill = backfill
	}
}

func New(tenants TenantLister, runner RetentionRunner, opts ...Option) (*Scheduler, error) {
	if tenants == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "tenant lister is required")
	}
	if runner == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "retention runner is required")
	}
	s := &Scheduler{
		tenants:     tenants,
		runner:      runner,
		interval:    defaultInterval,
		staleAfter:  defaultStaleAfter,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run blocks until ctx is cancelled. It resumes an interrupted backfill
// first, sweeps once immediately, then sweeps every interval.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.backfill != nil {
		if err := s.backfill.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("backfill job failed", "error", err)
		}
	}

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one full pass: stale-run recovery followed by a retention
// run for every tenant. A tenant that fails does not stop the others.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.clock()

	recovered, err := s.runner.RecoverStale(ctx, now.Add(-s.staleAfter), now)
	if err != nil {
		s.logger.Error("stale run recovery failed", "error", err)
	} else if recovered > 0 {
		s.logger.Warn("recovered stale retention runs", "count", recovered)
	}

	tenantIDs, err := s.tenants.ListIDs(ctx)
	if err != nil {
		s.logger.Error("listing tenants for retention sweep failed", "error", err)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, tenantID := range tenantIDs {
		g.Go(func() error {
			run, err := s.runner.Run(ctx, tenantID, s.clock())
			switch {
			case err == nil:
				s.logger.Info("retention run completed",
					"tenant_id", tenantID,
					"run_id", run.ID,
					"status", run.Status)
			case dErrors.HasCode(err, dErrors.CodeConfiguration):
				// No usable retention windows. Skip the tenant, the
				// sweep records nothing for it.
				s.logger.Warn("skipping tenant without retention windows",
					"tenant_id", tenantID,
					"error", err)
			default:
				s.logger.Error("retention run failed",
					"tenant_id", tenantID,
					"error", err)
			}
			// Tenants are independent, never abort the group.
			return nil
		})
	}
	_ = g.Wait()
}
