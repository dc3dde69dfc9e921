package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryList(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	list := NewInMemory(clock)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Minute))
	require.NoError(t, list.RevokeMany(ctx, []string{"a", "", "b"}, time.Minute))

	for _, key := range []string{"jti-1", "a", "b"} {
		revoked, err = list.IsRevoked(ctx, key)
		require.NoError(t, err)
		assert.True(t, revoked, key)
	}

	now = now.Add(2 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entries lapse after their ttl")

	assert.Error(t, list.Revoke(ctx, "x", 0))
}
