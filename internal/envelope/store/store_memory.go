package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"signature-service/internal/envelope/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
)

const defaultListLimit = 50

// InMemoryStore keeps envelopes in a map. Update enforces the same version
// check as the Postgres store.
type InMemoryStore struct {
	mu        sync.RWMutex
	envelopes map[id.EnvelopeID]*models.Envelope
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{envelopes: make(map[id.EnvelopeID]*models.Envelope)}
}

func (s *InMemoryStore) Create(_ context.Context, e *models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.envelopes[e.ID]; exists {
		return fmt.Errorf("envelope %s: %w", e.ID, sentinel.ErrConflict)
	}
	s.envelopes[e.ID] = e.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, envelopeID id.EnvelopeID) (*models.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.envelopes[envelopeID]
	if !ok {
		return nil, fmt.Errorf("envelope %s: %w", envelopeID, sentinel.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, tenantID id.TenantID, ownerID id.UserID, filter models.ListFilter) ([]*models.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Envelope
	for _, e := range s.envelopes {
		if !e.IsOwnedBy(tenantID, ownerID) {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		matched = append(matched, e)
	}
	slices.SortFunc(matched, func(a, b *models.Envelope) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if filter.Offset >= len(matched) {
		return []*models.Envelope{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*models.Envelope, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.Clone())
	}
	return out, nil
}

// Update replaces the stored envelope when e.Version matches and bumps the version.
func (s *InMemoryStore) Update(_ context.Context, e *models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.envelopes[e.ID]
	if !ok {
		return fmt.Errorf("envelope %s: %w", e.ID, sentinel.ErrNotFound)
	}
	if current.Version != e.Version {
		return fmt.Errorf("envelope %s version %d: %w", e.ID, e.Version, sentinel.ErrConflict)
	}
	e.Version++
	s.envelopes[e.ID] = e.Clone()
	return nil
}

// ListOverdue returns READY_FOR_SIGNATURE envelopes whose expiry has passed.
func (s *InMemoryStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]id.EnvelopeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var overdue []*models.Envelope
	for _, e := range s.envelopes {
		if e.Status == models.StatusReadyForSignature && e.IsExpired(now) {
			overdue = append(overdue, e)
		}
	}
	slices.SortFunc(overdue, func(a, b *models.Envelope) int {
		return a.ExpiresAt.Compare(*b.ExpiresAt)
	})
	if limit > 0 && len(overdue) > limit {
		overdue = overdue[:limit]
	}
	ids := make([]id.EnvelopeID, 0, len(overdue))
	for _, e := range overdue {
		ids = append(ids, e.ID)
	}
	return ids, nil
}
