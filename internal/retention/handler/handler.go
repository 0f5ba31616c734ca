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
	"custodian/pkg/requestcontext"

	"custodian/internal/retention/models"
)

// Service defines the retention operations exposed over HTTP.
type Service interface {
	Run(ctx context.Context, tenantID string, now time.Time) (*models.RetentionRun, error)
	ListRuns(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]*models.RetentionRun, error)
}

// Handler wires retention endpoints to the orchestrator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts retention endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tenants/{tenantID}/retention-runs", h.HandleListRuns)
	r.Post("/tenants/{tenantID}/retention-runs", h.HandleTriggerRun)
}

// HandleListRuns handles GET /tenants/{tenantID}/retention-runs requests.
// Optional from/to query parameters bound the started-at range, limit caps
// the page size.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant id is required"))
		return
	}

	query := r.URL.Query()
	from, err := parseTimeParam(query.Get("from"), "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseTimeParam(query.Get("to"), "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
			return
		}
	}

	runs, err := h.service.ListRuns(ctx, tenantID, from, to, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing retention runs failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListRunsResponse{Runs: fromRuns(runs)})
}

// HandleTriggerRun handles POST /tenants/{tenantID}/retention-runs requests.
// It executes a retention pass immediately instead of waiting for the next
// scheduled sweep.
func (h *Handler) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant id is required"))
		return
	}

	run, err := h.service.Run(ctx, tenantID, requestcontext.Now(ctx))
	if err != nil && run == nil {
		h.logger.ErrorContext(ctx, "retention run failed",
			"request_id", requestID,
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	// A failed run still produced an audit record. Return it with its
	// failed status rather than discarding what did happen.
	h.logger.InfoContext(ctx, "retention run triggered",
		"request_id", requestID,
		"tenant_id", tenantID,
		"run_id", run.ID,
		"status", run.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, fromRun(run))
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be RFC 3339", name)
	}
	return &t, nil
}
