package models

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "signature-service/pkg/domain"
)

func TestGenerate(t *testing.T) {
	plain, hash, err := Generate()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(plain)
	require.NoError(t, err)
	assert.Len(t, raw, TokenBytes)
	assert.Len(t, hash, 64)
	assert.Equal(t, Hash(plain), hash)

	other, _, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, plain, other)
}

func TestNewTokenCapsTTLAtEnvelopeExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	envelopeExpiry := now.Add(24 * time.Hour)

	tok, err := NewToken(id.InvitationTokenID(uuid.New()), id.EnvelopeID(uuid.New()), id.SignerID(uuid.New()), "h", 7*24*time.Hour, &envelopeExpiry, now)
	require.NoError(t, err)
	assert.Equal(t, envelopeExpiry, tok.ExpiresAt)
	assert.Equal(t, StatusActive, tok.Status)

	tok, err = NewToken(id.InvitationTokenID(uuid.New()), id.EnvelopeID(uuid.New()), id.SignerID(uuid.New()), "h", time.Hour, &envelopeExpiry, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt)

	past := now.Add(-time.Minute)
	_, err = NewToken(id.InvitationTokenID(uuid.New()), id.EnvelopeID(uuid.New()), id.SignerID(uuid.New()), "h", time.Hour, &past, now)
	assert.Error(t, err)
}

func TestTokenLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok, err := NewToken(id.InvitationTokenID(uuid.New()), id.EnvelopeID(uuid.New()), id.SignerID(uuid.New()), "h", time.Hour, nil, now)
	require.NoError(t, err)

	require.NoError(t, tok.ValidateForUse(now))

	tok.MarkViewed(now)
	tok.MarkViewed(now.Add(time.Minute))
	assert.Equal(t, StatusViewed, tok.Status)
	assert.Equal(t, 2, tok.ViewCount)
	require.NoError(t, tok.ValidateForUse(now))

	tok.MarkUsed(now)
	assert.ErrorContains(t, tok.ValidateForUse(now), "already used")
	assert.False(t, tok.Revoke("late", now), "used tokens are not revocable")

	fresh, err := NewToken(id.InvitationTokenID(uuid.New()), id.EnvelopeID(uuid.New()), id.SignerID(uuid.New()), "h2", time.Hour, nil, now)
	require.NoError(t, err)
	assert.ErrorContains(t, fresh.ValidateForUse(now.Add(time.Hour)), "expired")
	assert.True(t, fresh.Revoke(ReasonReissued, now))
	assert.ErrorContains(t, fresh.ValidateForUse(now), "revoked")
}
