// Package publisher delivers outbox events to an external bus. Every
// implementation accepts at most models.MaxBatchSize events per call and
// reports per-event failures so the relay can retry only what was rejected.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"signature-service/internal/outbox/models"
	id "signature-service/pkg/domain"
)

// Failure is an event the bus rejected.
type Failure struct {
	EventID id.OutboxEventID
	Reason  string
}

func checkBatch(events []*models.Event) error {
	if len(events) > models.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit of %d", len(events), models.MaxBatchSize)
	}
	return nil
}

// LogPublisher writes events to the log. Used in development when no bus is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, events []*models.Event) ([]Failure, error) {
	if err := checkBatch(events); err != nil {
		return nil, err
	}
	for _, ev := range events {
		p.logger.InfoContext(ctx, "outbox event published",
			"event_id", ev.ID.String(),
			"event_type", ev.EventType,
			"aggregate_type", ev.AggregateType,
			"aggregate_id", ev.AggregateID,
		)
	}
	return nil, nil
}
