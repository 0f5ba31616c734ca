// Package httptransport assembles the HTTP surface: platform middleware,
// operational endpoints, and the domain handlers. Handlers stay thin and
// delegate to services so transport concerns remain isolated.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodian/pkg/platform/httputil"
	"custodian/pkg/platform/middleware/metadata"
	"custodian/pkg/platform/middleware/requestid"
	"custodian/pkg/platform/middleware/requesttime"

	abusehandler "custodian/internal/abuse/handler"
	audithandler "custodian/internal/audit/handler"
	retentionhandler "custodian/internal/retention/handler"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

type Router struct {
	retention *retentionhandler.Handler
	abuse     *abusehandler.Handler
	audit     *audithandler.Handler
	metrics   http.Handler
	checks    map[string]HealthCheck
}

type Option func(*Router)

// WithMetricsHandler overrides the default Prometheus handler, used by
// tests that register against a private registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(rt *Router) {
		rt.metrics = h
	}
}

// WithHealthCheck adds a named dependency probe to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(rt *Router) {
		rt.checks[name] = check
	}
}

// WithAuditHandler mounts the audit trail read endpoints.
func WithAuditHandler(h *audithandler.Handler) Option {
	return func(rt *Router) {
		rt.audit = h
	}
}

// NewRouter wires all endpoints. The abuse guard fronts the domain routes;
// operational endpoints stay outside it so a banned operator box can still
// be scraped and probed.
func NewRouter(retention *retentionhandler.Handler, abuse *abusehandler.Handler, opts ...Option) http.Handler {
	rt := &Router{
		retention: retention,
		abuse:     abuse,
		metrics:   promhttp.Handler(),
		checks:    make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(rt)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", rt.handleHealth)
	r.Method(http.MethodGet, "/metrics", rt.metrics)

	r.Group(func(r chi.Router) {
		r.Use(rt.abuse.Guard)
		rt.retention.Register(r)
		rt.abuse.Register(r)
		if rt.audit != nil {
			rt.audit.Register(r)
		}
	})

	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body[name] = err.Error()
		}
	}
	httputil.WriteJSON(w, status, body)
}
