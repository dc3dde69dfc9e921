// Package models defines the outbox row: an event recorded in the same
// transaction as the state change that produced it, later flushed to the bus.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
)

// MaxBatchSize is the most entries a single publish call may carry.
const MaxBatchSize = 10

// Status of an outbox row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusDead       Status = "dead"
)

// Event is one outbox row.
type Event struct {
	ID             id.OutboxEventID `json:"id"`
	AggregateType  string           `json:"aggregate_type"`
	AggregateID    string           `json:"aggregate_id"`
	EventType      string           `json:"event_type"`
	Payload        json.RawMessage  `json:"payload"`
	Status         Status           `json:"status"`
	Attempts       int              `json:"attempts"`
	NextAttemptAt  time.Time        `json:"next_attempt_at"`
	LeaseOwner     string           `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time       `json:"lease_expires_at,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	DispatchedAt   *time.Time       `json:"dispatched_at,omitempty"`
}

// NewEvent marshals payload and builds a pending row due immediately.
func NewEvent(aggregateType, aggregateID, eventType string, payload any, now time.Time) (*Event, error) {
	if strings.TrimSpace(eventType) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event type required")
	}
	if strings.TrimSpace(aggregateType) == "" || strings.TrimSpace(aggregateID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "aggregate required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return &Event{
		ID:            id.OutboxEventID(uuid.New()),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// Dispatched reports whether the bus accepted the event.
func (e *Event) Dispatched() bool {
	return e.Status == StatusDispatched
}

// IsDue reports whether a relay may lease the row at now.
func (e *Event) IsDue(now time.Time) bool {
	if e.Status != StatusPending || e.NextAttemptAt.After(now) {
		return false
	}
	return e.LeaseExpiresAt == nil || !e.LeaseExpiresAt.After(now)
}

// SecretPayloadKeys are top-level payload fields carrying credentials, such
// as the plaintext invitation token. They are removed once the bus has the
// event; dead rows keep them so a requeue can still deliver.
var SecretPayloadKeys = []string{"token"}

// ScrubPayload drops SecretPayloadKeys from a JSON object payload. Anything
// that is not an object, or has none of the keys, comes back unchanged.
func ScrubPayload(raw json.RawMessage) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return raw
	}
	found := false
	for _, key := range SecretPayloadKeys {
		if _, ok := fields[key]; ok {
			delete(fields, key)
			found = true
		}
	}
	if !found {
		return raw
	}
	scrubbed, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return scrubbed
}

// Failure is the outcome of an attempt that did not dispatch.
type Failure struct {
	EventID       id.OutboxEventID
	Error         string
	NextAttemptAt time.Time
	Dead          bool
}

// Envelope is the JSON document put on the bus for every event.
type Envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

// Wire builds the bus document for e.
func (e *Event) Wire() ([]byte, error) {
	return json.Marshal(Envelope{
		ID:            e.ID.String(),
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		OccurredAt:    e.CreatedAt,
		Data:          e.Payload,
	})
}

// Chunk splits events into groups of at most size.
func Chunk(events []*Event, size int) [][]*Event {
	if size <= 0 {
		size = MaxBatchSize
	}
	var out [][]*Event
	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		out = append(out, events[start:end])
	}
	return out
}
