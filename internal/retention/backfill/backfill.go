// Package backfill computes tenant-scoped IP hashes for event rows that
// predate hashing at ingest. It runs as a resumable batch job: each batch
// is checkpointed through the jobs runner, so an interrupted backfill
// resumes from the last durable cursor instead of restarting.
package backfill

import (
	"context"
	"fmt"
	"log/slog"

	dErrors "custodian/pkg/domain-errors"
	"custodian/pkg/platform/privacy"

	"custodian/internal/jobs"
)

// JobName identifies the IP hash backfill in the backfill_runs ledger.
const JobName = "events_ip_hash_backfill"

const defaultBatchSize = 500

// EventRecord is one event row awaiting an IP hash.
type EventRecord struct {
	ID       string
	TenantID string
	RawIP    string
}

// HashUpdate carries a computed hash back to the source.
type HashUpdate struct {
	ID     string
	IPHash string
}

// EventSource pages over unhashed events and persists computed hashes.
// NextBatch returns up to limit records with ID greater than afterID,
// ordered by ID ascending. An empty afterID starts from the beginning.
type EventSource interface {
	NextBatch(ctx context.Context, afterID string, limit int) ([]EventRecord, error)
	ApplyHashes(ctx context.Context, updates []HashUpdate) error
}

type Backfiller struct {
	source    EventSource
	hasher    *privacy.Hasher
	runner    *jobs.Runner
	logger    *slog.Logger
	batchSize int
}

type Option func(*Backfiller)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backfiller) {
		b.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(b *Backfiller) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func New(source EventSource, hasher *privacy.Hasher, runner *jobs.Runner, opts ...Option) (*Backfiller, error) {
	if source == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "event source is required")
	}
	if hasher == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "hasher is required")
	}
	if runner == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "job runner is required")
	}
	b := &Backfiller{
		source:    source,
		hasher:    hasher,
		runner:    runner,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run drives the backfill to completion, resuming any active run first.
func (b *Backfiller) Run(ctx context.Context) error {
	return b.runner.Execute(ctx, JobName, b.step)
}

// step processes one batch after the given cursor. Rehashing a row is
// harmless because the hash is deterministic, so a crash between the
// update and the checkpoint only repeats work, never corrupts it.
func (b *Backfiller) step(ctx context.Context, cursor string) (string, bool, error) {
	batch, err := b.source.NextBatch(ctx, cursor, b.batchSize)
	if err != nil {
		return "", false, fmt.Errorf("fetching backfill batch: %w", err)
	}
	if len(batch) == 0 {
		return cursor, true, nil
	}

	updates := make([]HashUpdate, 0, len(batch))
	for _, record := range batch {
		hash, err := b.hasher.HashIP(record.TenantID, record.RawIP)
		if err != nil {
			b.logger.Warn("skipping event with unparseable ip",
				"event_id", record.ID,
				"tenant_id", record.TenantID,
				"error", err)
			continue
		}
		updates = append(updates, HashUpdate{ID: record.ID, IPHash: hash})
	}

	if len(updates) > 0 {
		if err := b.source.ApplyHashes(ctx, updates); err != nil {
			return "", false, fmt.Errorf("applying ip hashes: %w", err)
		}
	}

	next := batch[len(batch)-1].ID
	return next, len(batch) < b.batchSize, nil
}
