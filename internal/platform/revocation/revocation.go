// Package revocation keeps short-lived "this credential is dead" markers that
// are checked on hot paths: owner access-token JTIs and invitation token hashes.
package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signature-service/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

// List is the contract shared by the Redis, Postgres and in-memory lists.
type List interface {
	Revoke(ctx context.Context, key string, ttl time.Duration) error
	RevokeMany(ctx context.Context, keys []string, ttl time.Duration) error
	IsRevoked(ctx context.Context, key string) (bool, error)
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// InMemoryList is a process-local list for tests and single-instance runs.
type InMemoryList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	clock   Clock
}

func NewInMemory(clock Clock) *InMemoryList {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryList{entries: make(map[string]time.Time), clock: clock}
}

func (l *InMemoryList) Revoke(ctx context.Context, key string, ttl time.Duration) error {
	return l.RevokeMany(ctx, []string{key}, ttl)
}

func (l *InMemoryList) RevokeMany(_ context.Context, keys []string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt := l.clock().Add(ttl)
	for _, k := range keys {
		if k != "" {
			l.entries[k] = expiresAt
		}
	}
	return nil
}

func (l *InMemoryList) IsRevoked(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	expiresAt, ok := l.entries[key]
	if !ok {
		return false, nil
	}
	return l.clock().Before(expiresAt), nil
}
