package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "custodian/pkg/domain-errors"
	"custodian/pkg/platform/httputil"
	"custodian/pkg/platform/privacy"
	"custodian/pkg/requestcontext"

	"custodian/internal/audit"
	"custodian/internal/platform/config"
	"custodian/internal/platform/geoip"
)

// AuditPublisher records rejected requests from banned clients.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service defines the abuse operations exposed over HTTP.
type Service interface {
	RegisterAttempt(ctx context.Context, subject string, threshold int, window, ban time.Duration, now time.Time) (*time.Time, error)
	IsBanned(ctx context.Context, subject string, now time.Time) (bool, int, error)
}

// Handler wires abuse endpoints to the ban engine. Subjects on the wire
// are opaque keys, typically tenant-scoped IP hashes; raw IPs never appear
// in the API.
type Handler struct {
	service Service
	hasher  *privacy.Hasher
	policy  config.AbuseConfig
	logger  *slog.Logger
	audit   AuditPublisher
	geo     *geoip.Resolver
}

type Option func(*Handler)

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(h *Handler) {
		h.audit = publisher
	}
}

// WithGeo annotates rejection audit events with the client country.
func WithGeo(resolver *geoip.Resolver) Option {
	return func(h *Handler) {
		h.geo = resolver
	}
}

func New(service Service, hasher *privacy.Hasher, policy config.AbuseConfig, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, hasher: hasher, policy: policy, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts abuse endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/abuse/subjects/{subject}", h.HandleStatus)
	r.Post("/abuse/subjects/{subject}/attempts", h.HandleAttempt)
}

// HandleStatus handles GET /abuse/subjects/{subject} requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := chi.URLParam(r, "subject")
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject is required"))
		return
	}

	banned, retryAfter, err := h.service.IsBanned(ctx, subject, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "ban status lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Subject:           subject,
		Banned:            banned,
		RetryAfterSeconds: retryAfter,
	})
}

// HandleAttempt handles POST /abuse/subjects/{subject}/attempts requests.
// Callers report a failed attempt for the subject; the response says
// whether that attempt crossed the ban threshold.
func (h *Handler) HandleAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := chi.URLParam(r, "subject")
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject is required"))
		return
	}

	banUntil, err := h.service.RegisterAttempt(ctx, subject,
		h.policy.Threshold, h.policy.Window, h.policy.BanDuration,
		requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "recording abuse attempt failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, AttemptResponse{
		Subject:  subject,
		Banned:   banUntil != nil,
		BanUntil: banUntil,
	})
}

// Guard rejects requests from banned clients before they reach a handler.
// The client IP is pseudonymized with the tenant scope, so the ban store
// only ever sees hashes.
func (h *Handler) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := r.Header.Get("X-Tenant-Id")
		if tenantID == "" {
			tenantID = "public"
		}
		clientIP := requestcontext.ClientIP(ctx)

		subject, err := h.hasher.HashIP(tenantID, clientIP)
		if err != nil {
			// An unparseable client address cannot be rate tracked. Let the
			// request through rather than locking out everything behind a
			// broken proxy header.
			h.logger.WarnContext(ctx, "client ip not trackable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		banned, retryAfter, err := h.service.IsBanned(ctx, subject, requestcontext.Now(ctx))
		if err != nil {
			h.logger.ErrorContext(ctx, "ban check failed", "error", err)
			httputil.WriteError(w, err)
			return
		}
		if banned {
			h.recordRejection(ctx, tenantID, subject, clientIP)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "banned",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(requestcontext.WithTenantID(ctx, tenantID)))
	})
}

// recordRejection annotates the audit trail with the masked client network
// and country. The raw IP is never recorded.
func (h *Handler) recordRejection(ctx context.Context, tenantID, subject, clientIP string) {
	if h.audit == nil {
		return
	}
	maskedIP, err := privacy.MaskIP(clientIP)
	if err != nil {
		maskedIP = ""
	}
	_ = h.audit.Emit(ctx, audit.Event{
		TenantID: tenantID,
		Action:   audit.ActionAbuseBanRejected,
		Subject:  subject,
		MaskedIP: maskedIP,
		Country:  h.geo.Country(clientIP),
	})
}

type StatusResponse struct {
	Subject           string `json:"subject"`
	Banned            bool   `json:"banned"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

type AttemptResponse struct {
	Subject  string     `json:"subject"`
	Banned   bool       `json:"banned"`
	BanUntil *time.Time `json:"ban_until,omitempty"`
}
