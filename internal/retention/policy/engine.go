// Package policy resolves the effective retention cutoffs for a
// (tenant, dataset) pair: dataset policy overrides tenant defaults, legal
// holds override everything.
package policy

import (
	"context"
	"log/slog"
	"time"

	"custodian/internal/retention/models"
	"custodian/internal/tenant"
	dErrors "custodian/pkg/domain-errors"
)

// PolicyStore reads per-dataset retention policies. Get returns nil when no
// explicit policy row exists.
type PolicyStore interface {
	Get(ctx context.Context, tenantID, datasetKey string) (*models.RetentionPolicy, error)
}

// TenantDefaults reads tenant-level settings that apply when no dataset
// policy exists.
type TenantDefaults interface {
	Get(ctx context.Context, tenantID string) (*tenant.Settings, error)
}

// Cutoffs are the timestamp boundaries for one dataset; rows strictly older
// qualify for deletion (Event) or raw-IP scrubbing (RawIP).
type Cutoffs struct {
	Event time.Time
	RawIP time.Time
}

// Engine computes effective cutoffs.
type Engine struct {
	policies PolicyStore
	tenants  TenantDefaults
	logger   *slog.Logger
}

// Option configures an Engine instance.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(policies PolicyStore, tenants TenantDefaults, opts ...Option) (*Engine, error) {
	if policies == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "policy store is required")
	}
	if tenants == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "tenant defaults store is required")
	}
	engine := &Engine{
		policies: policies,
		tenants:  tenants,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Windows returns the tenant-level retention windows in days. Missing
// settings or non-positive windows are a configuration error: the caller must
// skip the tenant and alert, never default to "keep forever" or "delete
// everything".
func (e *Engine) Windows(ctx context.Context, tenantID string) (eventDays, rawIPDays int, err error) {
	settings, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		return 0, 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "load tenant settings")
	}
	if settings == nil {
		return 0, 0, dErrors.Newf(dErrors.CodeConfiguration, "tenant %q has no retention settings", tenantID)
	}
	if settings.EventRetentionDays <= 0 || settings.RawIPRetentionDays <= 0 {
		return 0, 0, dErrors.Newf(dErrors.CodeConfiguration,
			"tenant %q has invalid retention windows (event=%d raw_ip=%d)",
			tenantID, settings.EventRetentionDays, settings.RawIPRetentionDays)
	}
	return settings.EventRetentionDays, settings.RawIPRetentionDays, nil
}

// EffectiveCutoffs resolves the cutoffs for a dataset at the given instant.
// held is true when a legal hold suspends all deletion for the dataset; the
// returned cutoffs are then zero-valued and must not be applied.
func (e *Engine) EffectiveCutoffs(ctx context.Context, tenantID, datasetKey string, now time.Time) (cutoffs Cutoffs, held bool, err error) {
	datasetPolicy, err := e.policies.Get(ctx, tenantID, datasetKey)
	if err != nil {
		return Cutoffs{}, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "load retention policy")
	}

	if datasetPolicy != nil && datasetPolicy.LegalHold {
		e.logger.InfoContext(ctx, "legal hold active, skipping dataset",
			"tenant_id", tenantID,
			"dataset", datasetKey,
			"reason", datasetPolicy.LegalHoldReason,
		)
		return Cutoffs{}, true, nil
	}

	eventDays, rawIPDays := 0, 0
	if datasetPolicy != nil {
		eventDays = datasetPolicy.RetentionDays
		rawIPDays = datasetPolicy.RawIPRetentionDays
	}
	if eventDays <= 0 || rawIPDays <= 0 {
		defaultEvent, defaultRawIP, err := e.Windows(ctx, tenantID)
		if err != nil {
			return Cutoffs{}, false, err
		}
		if eventDays <= 0 {
			eventDays = defaultEvent
		}
		if rawIPDays <= 0 {
			rawIPDays = defaultRawIP
		}
	}

	return Cutoffs{
		Event: now.AddDate(0, 0, -eventDays),
		RawIP: now.AddDate(0, 0, -rawIPDays),
	}, false, nil
}
