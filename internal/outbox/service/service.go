// Package service exposes operator actions on the outbox: inspect dead rows,
// requeue them, force a flush and prune dispatched history.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"signature-service/internal/outbox/models"
	"signature-service/internal/outbox/relay"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/sentinel"
	"signature-service/pkg/requestcontext"
)

type Store interface {
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Event, error)
	Requeue(ctx context.Context, eventID id.OutboxEventID, now time.Time) error
	DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Flusher interface {
	Flush(ctx context.Context) (relay.Result, error)
}

const maxListLimit = 500

type Service struct {
	store   Store
	flusher Flusher
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, flusher Flusher, opts ...Option) *Service {
	s := &Service{store: store, flusher: flusher, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListDead(ctx context.Context, limit int) ([]*models.Event, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	events, err := s.store.ListByStatus(ctx, models.StatusDead, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list dead events")
	}
	return events, nil
}

func (s *Service) Requeue(ctx context.Context, eventID id.OutboxEventID) error {
	err := s.store.Requeue(ctx, eventID, requestcontext.Now(ctx))
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "outbox event not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "only dead events can be requeued")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to requeue event")
	}
	s.logger.InfoContext(ctx, "outbox_event_requeued",
		"event_id", eventID.String(),
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
	)
	return nil
}

func (s *Service) Flush(ctx context.Context) (relay.Result, error) {
	if s.flusher == nil {
		return relay.Result{}, dErrors.New(dErrors.CodeConflict, "relay is not running in this process")
	}
	res, err := s.flusher.Flush(ctx)
	if err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "flush failed")
	}
	return res, nil
}

// Prune deletes dispatched rows older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int, error) {
	n, err := s.store.DeleteDispatchedBefore(ctx, requestcontext.Now(ctx).Add(-retention))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to prune outbox")
	}
	return n, nil
}
