package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"signature-service/internal/invitation/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
)

// translateTokenError converts ValidateForUse errors into sentinel errors.
func translateTokenError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrExpired)
	case strings.Contains(msg, "already used"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrAlreadyUsed)
	case strings.Contains(msg, "revoked"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrRevoked)
	default:
		return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
	}
}

// Error Contract:
//   - ErrNotFound when no token matches the hash
//   - ErrExpired, ErrAlreadyUsed, ErrRevoked from ValidateForUse (record still returned)
//   - ErrConflict when a second live token would be created for a signer
//
// InMemoryStore keeps invitation tokens in memory for tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*models.Token
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*models.Token)}
}

func (s *InMemoryStore) Create(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.TokenHash]; exists {
		return fmt.Errorf("invitation hash exists: %w", sentinel.ErrConflict)
	}
	if token.Status.IsLive() {
		for _, t := range s.tokens {
			if t.SignerID == token.SignerID && t.Status.IsLive() {
				return fmt.Errorf("signer already has a live invitation: %w", sentinel.ErrConflict)
			}
		}
	}
	cp := *token
	s.tokens[token.TokenHash] = &cp
	return nil
}

func (s *InMemoryStore) FindByHash(_ context.Context, hash string) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[hash]
	if !ok {
		return nil, fmt.Errorf("invitation not found: %w", sentinel.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) FindLiveBySigner(_ context.Context, signerID id.SignerID) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.SignerID == signerID && t.Status.IsLive() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("live invitation not found: %w", sentinel.ErrNotFound)
}

// RecordView validates the token and counts a view.
func (s *InMemoryStore) RecordView(_ context.Context, hash string, now time.Time) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok {
		return nil, fmt.Errorf("invitation not found: %w", sentinel.ErrNotFound)
	}
	if err := t.ValidateForUse(now); err != nil {
		cp := *t
		return &cp, translateTokenError(err)
	}
	t.MarkViewed(now)
	cp := *t
	return &cp, nil
}

// Consume marks the token used if it is still live.
// Returns the record even on ErrAlreadyUsed so callers can log replay attempts.
func (s *InMemoryStore) Consume(_ context.Context, hash string, now time.Time) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok {
		return nil, fmt.Errorf("invitation not found: %w", sentinel.ErrNotFound)
	}
	if err := t.ValidateForUse(now); err != nil {
		cp := *t
		return &cp, translateTokenError(err)
	}
	t.MarkUsed(now)
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) RevokeLiveForSigner(_ context.Context, signerID id.SignerID, reason string, now time.Time) ([]*models.Token, error) {
	return s.revokeWhere(func(t *models.Token) bool { return t.SignerID == signerID }, reason, now), nil
}

func (s *InMemoryStore) RevokeForEnvelope(_ context.Context, envelopeID id.EnvelopeID, reason string, now time.Time) ([]*models.Token, error) {
	return s.revokeWhere(func(t *models.Token) bool { return t.EnvelopeID == envelopeID }, reason, now), nil
}

func (s *InMemoryStore) revokeWhere(match func(*models.Token) bool, reason string, now time.Time) []*models.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revoked []*models.Token
	for _, t := range s.tokens {
		if match(t) && t.Revoke(reason, now) {
			cp := *t
			revoked = append(revoked, &cp)
		}
	}
	return revoked
}

// DeleteExpired removes expired tokens that were never used.
// The time parameter is injected for testability.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, t := range s.tokens {
		if t.Status != models.StatusSigned && t.IsExpired(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
