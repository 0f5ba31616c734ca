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

	"custodian/internal/audit"
)

const maxListLimit = 500

// Service defines the audit read operations exposed over HTTP.
type Service interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Handler exposes the governance audit trail for compliance review.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/events", h.HandleListEvents)
}

// HandleListEvents handles GET /audit/events requests. The optional limit
// query parameter caps the page size; events come back newest first.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
			return
		}
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	events, err := h.service.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing audit events failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListEventsResponse{Events: fromEvents(events)})
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}

// EventResponse is the wire form of a governance audit event.
type EventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	Dataset   string    `json:"dataset,omitempty"`
	MaskedIP  string    `json:"masked_ip,omitempty"`
	Country   string    `json:"country,omitempty"`
	Count     int64     `json:"count,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

func fromEvents(events []audit.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, EventResponse{
			Timestamp: event.Timestamp,
			TenantID:  event.TenantID,
			Action:    event.Action,
			Subject:   event.Subject,
			Dataset:   event.Dataset,
			MaskedIP:  event.MaskedIP,
			Country:   event.Country,
			Count:     event.Count,
			Detail:    event.Detail,
		})
	}
	return out
}
