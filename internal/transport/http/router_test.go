package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"custodian/pkg/platform/privacy"

	abusehandler "custodian/internal/abuse/handler"
	"custodian/internal/audit"
	audithandler "custodian/internal/audit/handler"
	"custodian/internal/platform/config"
	retentionhandler "custodian/internal/retention/handler"
	"custodian/internal/retention/models"
)

type stubRetention struct{}

func (stubRetention) Run(_ context.Context, tenantID string, now time.Time) (*models.RetentionRun, error) {
	return &models.RetentionRun{TenantID: tenantID, StartedAt: now, Status: models.RunStatusSucceeded}, nil
}

func (stubRetention) ListRuns(context.Context, string, *time.Time, *time.Time, int) ([]*models.RetentionRun, error) {
	return nil, nil
}

type stubAbuse struct {
	banned     bool
	retryAfter int
}

func (s *stubAbuse) RegisterAttempt(context.Context, string, int, time.Duration, time.Duration, time.Time) (*time.Time, error) {
	return nil, nil
}

func (s *stubAbuse) IsBanned(context.Context, string, time.Time) (bool, int, error) {
	return s.banned, s.retryAfter, nil
}

func newTestRouter(t *testing.T, abuse *stubAbuse, opts ...Option) http.Handler {
	t.Helper()
	hasher, err := privacy.NewHasher([]byte("test-process-secret"))
	require.NoError(t, err)

	policy := config.AbuseConfig{Threshold: 3, Window: time.Minute, BanDuration: 2 * time.Minute}
	return NewRouter(
		retentionhandler.New(stubRetention{}, slog.Default()),
		abusehandler.New(abuse, hasher, policy, slog.Default()),
		opts...,
	)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, &stubAbuse{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestHealthzDegraded(t *testing.T) {
	router := newTestRouter(t, &stubAbuse{},
		WithHealthCheck("redis", func(context.Context) error {
			return errors.New("connection refused")
		}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "degraded", body["status"])
	require.Contains(t, body["redis"], "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	router := newTestRouter(t, &stubAbuse{},
		WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditRoutesMounted(t *testing.T) {
	store := audit.NewInMemoryStore()
	require.NoError(t, store.Append(context.Background(), audit.Event{
		Timestamp: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		TenantID:  "tenant-a",
		Action:    audit.ActionRetentionRunSucceeded,
	}))
	router := newTestRouter(t, &stubAbuse{},
		WithAuditHandler(audithandler.New(store, slog.Default())))

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	req.RemoteAddr = "203.0.113.7:4444"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body audithandler.ListEventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Events, 1)
	require.Equal(t, audit.ActionRetentionRunSucceeded, body.Events[0].Action)
}

func TestGuardFrontsAuditRoutes(t *testing.T) {
	router := newTestRouter(t, &stubAbuse{banned: true, retryAfter: 30},
		WithAuditHandler(audithandler.New(audit.NewInMemoryStore(), slog.Default())))

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	req.RemoteAddr = "203.0.113.7:4444"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGuardFrontsDomainRoutes(t *testing.T) {
	router := newTestRouter(t, &stubAbuse{banned: true, retryAfter: 60})

	req := httptest.NewRequest(http.MethodGet, "/tenants/tenant-a/retention-runs", nil)
	req.RemoteAddr = "203.0.113.7:4444"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestGuardSparesOperationalRoutes(t *testing.T) {
	router := newTestRouter(t, &stubAbuse{banned: true, retryAfter: 60})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.7:4444"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
