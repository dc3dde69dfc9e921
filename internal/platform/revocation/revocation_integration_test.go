//go:build integration

package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signature-service/pkg/platform/sentinel"
	"signature-service/pkg/testutil/containers"
)

func TestRedisList(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedis(t)
	invitations := NewRedis(rc.Client, WithKeyPrefix(InvitationPrefix))
	accessTokens := NewRedis(rc.Client)

	require.NoError(t, invitations.RevokeMany(ctx, []string{"hash-a", "", "hash-b"}, time.Minute))

	revoked, err := invitations.IsRevoked(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = accessTokens.IsRevoked(ctx, "hash-a")
	require.NoError(t, err)
	assert.False(t, revoked, "prefixes keep the lists apart")

	require.NoError(t, accessTokens.Revoke(ctx, "jti-1", time.Minute))
	ttl, err := rc.Client.TTL(ctx, AccessTokenPrefix+"jti-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	assert.ErrorIs(t, invitations.Revoke(ctx, "hash-c", 0), sentinel.ErrInvalidState)
}

func TestPostgresList(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgres(t)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := now
	list := NewPostgres(pg.DB, WithPrefix(InvitationPrefix), WithClock(func() time.Time { return clock }))

	require.NoError(t, list.RevokeMany(ctx, []string{"hash-a", "hash-b"}, time.Minute))
	require.NoError(t, list.Revoke(ctx, "hash-c", time.Hour))

	revoked, err := list.IsRevoked(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	clock = now.Add(2 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "hash-a")
	require.NoError(t, err)
	assert.False(t, revoked, "entries lapse after their ttl")

	n, err := list.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	revoked, err = list.IsRevoked(ctx, "hash-c")
	require.NoError(t, err)
	assert.True(t, revoked)
}
