// Package abuse detects and temporarily bans abusive request sources. State
// is tracked per pseudonymous subject (e.g. "iphash:" + a tenant-scoped IP
// hash) as a fixed-window attempt counter; crossing the threshold inside the
// window issues a fixed-length ban. Bans do not extend on repeat attempts:
// an attempt during a ban returns the original ban-until unchanged.
//
// The engine carries no policy of its own: threshold, window, and ban length
// are caller-supplied per call site, so login failures and ingestion abuse
// can use different settings against one engine.
package abuse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"custodian/internal/audit"
	"custodian/internal/platform/metrics"
	dErrors "custodian/pkg/domain-errors"
)

// AuditPublisher emits governance audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Engine tracks attempts and answers ban queries. All state lives in the
// injected Store, never a hidden global, so tests construct isolated
// instances and multi-instance deployments share a Redis store.
type Engine struct {
	store          Store
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

// Option configures an Engine instance.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "subject store is required")
	}
	engine := &Engine{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// RegisterAttempt records one attempt for the subject at the given instant.
// It returns the ban-until timestamp when the subject is (or already was)
// banned, nil otherwise. Non-positive threshold, window, or ban length is a
// caller programming error and panics.
func (e *Engine) RegisterAttempt(ctx context.Context, subject string, threshold int, window, ban time.Duration, now time.Time) (*time.Time, error) {
	if threshold <= 0 {
		panic(fmt.Sprintf("abuse: threshold must be positive, got %d", threshold))
	}
	if window <= 0 {
		panic(fmt.Sprintf("abuse: window must be positive, got %v", window))
	}
	if ban <= 0 {
		panic(fmt.Sprintf("abuse: ban duration must be positive, got %v", ban))
	}

	var banned bool
	state, err := e.store.Update(ctx, subject, func(current *SubjectState) *SubjectState {
		// Attempts during an active ban leave it untouched.
		if current != nil && current.BanUntil != nil {
			if now.Before(*current.BanUntil) {
				return current
			}
			current = nil // ban expired, start clean
		}

		// New subject or elapsed window: open a fresh window.
		if current == nil || !now.Before(current.WindowStart.Add(window)) {
			return &SubjectState{
				Count:       1,
				WindowStart: now,
				ExpiresAt:   now.Add(window),
			}
		}

		next := *current
		next.Count++
		if next.Count >= threshold {
			banUntil := now.Add(ban)
			next.BanUntil = &banUntil
			next.ExpiresAt = banUntil
			banned = true
		}
		return &next
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "register attempt")
	}

	if e.metrics != nil {
		e.metrics.AbuseAttemptsTotal.Inc()
	}

	if banned {
		if e.metrics != nil {
			e.metrics.AbuseBansIssuedTotal.Inc()
		}
		e.logger.WarnContext(ctx, "abuse ban issued",
			"subject", subject, "ban_until", *state.BanUntil)
		e.emit(ctx, audit.Event{
			Action:  audit.ActionAbuseBanIssued,
			Subject: subject,
			Detail:  fmt.Sprintf("threshold %d reached within %s", threshold, window),
		})
	}

	if state != nil && state.BanUntil != nil {
		banUntil := *state.BanUntil
		return &banUntil, nil
	}
	return nil, nil
}

// IsBanned reports whether the subject is banned at the given instant, with
// the whole seconds remaining until the ban lifts. Stale state (expired ban
// or elapsed window) is cleared on the way through.
func (e *Engine) IsBanned(ctx context.Context, subject string, now time.Time) (bool, int, error) {
	var banUntil *time.Time
	_, err := e.store.Update(ctx, subject, func(current *SubjectState) *SubjectState {
		if current == nil {
			return nil
		}
		if current.BanUntil != nil && now.Before(*current.BanUntil) {
			banUntil = current.BanUntil
			return current
		}
		// Ban lifted or window dead either way: drop the entry.
		if !now.Before(current.ExpiresAt) {
			return nil
		}
		return current
	})
	if err != nil {
		return false, 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "check ban status")
	}
	if banUntil == nil {
		return false, 0, nil
	}

	if e.metrics != nil {
		e.metrics.AbuseBannedRejections.Inc()
	}
	retryAfter := int((banUntil.Sub(now) + time.Second - 1) / time.Second)
	return true, retryAfter, nil
}

// Reset clears all subject state. Administrative/test escape hatch, never a
// production request path.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.Reset(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "reset abuse state")
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	if e.auditPublisher == nil {
		return
	}
	_ = e.auditPublisher.Emit(ctx, event)
}
