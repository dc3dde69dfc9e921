package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"signature-service/internal/outbox/models"
	"signature-service/internal/outbox/relay"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/httputil"
	"signature-service/pkg/platform/middleware/admin"
	request "signature-service/pkg/platform/middleware/request"
)

// Service is the operator surface of the outbox.
type Service interface {
	ListDead(ctx context.Context, limit int) ([]*models.Event, error)
	Requeue(ctx context.Context, eventID id.OutboxEventID) error
	Flush(ctx context.Context) (relay.Result, error)
}

type Handler struct {
	svc        Service
	logger     *slog.Logger
	adminToken string
}

func New(svc Service, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, adminToken: adminToken}
}

// Register mounts /admin/outbox behind the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/outbox", func(ar chi.Router) {
		ar.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		ar.Use(request.Timeout(30 * time.Second))
		ar.Get("/dead", h.handleListDead)
		ar.Post("/flush", h.handleFlush)
		ar.Post("/{id}/requeue", h.handleRequeue)
	})
}

type eventResponse struct {
	ID            id.OutboxEventID `json:"id"`
	AggregateType string           `json:"aggregate_type"`
	AggregateID   string           `json:"aggregate_id"`
	EventType     string           `json:"event_type"`
	Status        models.Status    `json:"status"`
	Attempts      int              `json:"attempts"`
	LastError     string           `json:"last_error,omitempty"`
	NextAttemptAt time.Time        `json:"next_attempt_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

type flushResponse struct {
	Leased       int `json:"leased"`
	Dispatched   int `json:"dispatched"`
	Rescheduled  int `json:"rescheduled"`
	DeadLettered int `json:"dead_lettered"`
	PublishCalls int `json:"publish_calls"`
}

func (h *Handler) handleListDead(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := h.svc.ListDead(r.Context(), limit)
	if err != nil {
		h.logFailure(r, "list dead outbox events failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{
			ID:            ev.ID,
			AggregateType: ev.AggregateType,
			AggregateID:   ev.AggregateID,
			EventType:     ev.EventType,
			Status:        ev.Status,
			Attempts:      ev.Attempts,
			LastError:     ev.LastError,
			NextAttemptAt: ev.NextAttemptAt,
			CreatedAt:     ev.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (h *Handler) handleRequeue(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseOutboxEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.Requeue(r.Context(), eventID); err != nil {
		h.logFailure(r, "requeue outbox event failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Flush(r.Context())
	if err != nil {
		h.logFailure(r, "manual outbox flush failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, flushResponse{
		Leased:       res.Leased,
		Dispatched:   res.Dispatched,
		Rescheduled:  res.Rescheduled,
		DeadLettered: res.DeadLettered,
		PublishCalls: res.PublishCalls,
	})
}

func (h *Handler) logFailure(r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err.Error(),
	)
}
