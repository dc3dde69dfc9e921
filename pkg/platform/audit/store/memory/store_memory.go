// Package memory is the audit trail used when no database is configured.
package memory

import (
	"context"
	"slices"
	"sync"

	id "signature-service/pkg/domain"
	audit "signature-service/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	trails map[id.EnvelopeID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{trails: make(map[id.EnvelopeID][]audit.Event)}
}

// Append records event at the end of its envelope's trail. Events without a
// category get the one their action maps to.
func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	s.mu.Lock()
	s.trails[event.EnvelopeID] = append(s.trails[event.EnvelopeID], event)
	s.mu.Unlock()
	return nil
}

// ListByEnvelope returns a copy of the trail, oldest first.
func (s *InMemoryStore) ListByEnvelope(_ context.Context, envelopeID id.EnvelopeID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.trails[envelopeID])
	if out == nil {
		out = []audit.Event{}
	}
	return out, nil
}
