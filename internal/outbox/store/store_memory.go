package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"signature-service/internal/outbox/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
)

// InMemoryStore is the outbox for tests and single-process development.
type InMemoryStore struct {
	mu     sync.Mutex
	events map[id.OutboxEventID]*models.Event
	order  []id.OutboxEventID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.OutboxEventID]*models.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[event.ID]; exists {
		return fmt.Errorf("outbox event exists: %w", sentinel.ErrConflict)
	}
	cp := *event
	s.events[event.ID] = &cp
	s.order = append(s.order, event.ID)
	return nil
}

// Lease claims up to limit due rows for owner until now+ttl.
func (s *InMemoryStore) Lease(_ context.Context, owner string, limit int, now time.Time, ttl time.Duration) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Event
	for _, eventID := range s.order {
		ev := s.events[eventID]
		if ev.IsDue(now) {
			due = append(due, ev)
		}
	}
	slices.SortStableFunc(due, func(a, b *models.Event) int {
		return a.NextAttemptAt.Compare(b.NextAttemptAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	leaseExpiresAt := now.Add(ttl)
	out := make([]*models.Event, 0, len(due))
	for _, ev := range due {
		ev.LeaseOwner = owner
		ev.LeaseExpiresAt = &leaseExpiresAt
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

// MarkDispatched records delivery of rows still leased by owner and scrubs
// their secret payload fields. Rows another relay has since leased are left alone.
func (s *InMemoryStore) MarkDispatched(_ context.Context, owner string, ids []id.OutboxEventID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eventID := range ids {
		ev, ok := s.events[eventID]
		if !ok || ev.LeaseOwner != owner {
			continue
		}
		ev.Payload = models.ScrubPayload(ev.Payload)
		ev.Status = models.StatusDispatched
		ev.DispatchedAt = &now
		ev.LeaseOwner = ""
		ev.LeaseExpiresAt = nil
		ev.LastError = ""
	}
	return nil
}

func (s *InMemoryStore) MarkFailed(_ context.Context, owner string, failures []models.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range failures {
		ev, ok := s.events[f.EventID]
		if !ok || ev.LeaseOwner != owner {
			continue
		}
		ev.Attempts++
		ev.LastError = f.Error
		ev.NextAttemptAt = f.NextAttemptAt
		ev.LeaseOwner = ""
		ev.LeaseExpiresAt = nil
		if f.Dead {
			ev.Status = models.StatusDead
		}
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, eventID id.OutboxEventID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("outbox event not found: %w", sentinel.ErrNotFound)
	}
	cp := *ev
	return &cp, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.Status, limit int) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, eventID := range s.order {
		ev := s.events[eventID]
		if ev.Status != status {
			continue
		}
		cp := *ev
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Requeue returns a dead row to pending with a fresh attempt budget.
func (s *InMemoryStore) Requeue(_ context.Context, eventID id.OutboxEventID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("outbox event not found: %w", sentinel.ErrNotFound)
	}
	if ev.Status != models.StatusDead {
		return fmt.Errorf("outbox event is %s: %w", ev.Status, sentinel.ErrInvalidState)
	}
	ev.Status = models.StatusPending
	ev.Attempts = 0
	ev.NextAttemptAt = now
	return nil
}

// DeleteDispatchedBefore prunes dispatched rows older than cutoff.
func (s *InMemoryStore) DeleteDispatchedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	kept := s.order[:0]
	for _, eventID := range s.order {
		ev := s.events[eventID]
		if ev.Status == models.StatusDispatched && ev.DispatchedAt != nil && ev.DispatchedAt.Before(cutoff) {
			delete(s.events, eventID)
			deleted++
			continue
		}
		kept = append(kept, eventID)
	}
	s.order = kept
	return deleted, nil
}
