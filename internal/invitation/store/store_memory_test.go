package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signature-service/internal/invitation/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
)

func newToken(t *testing.T, signerID id.SignerID, hash string, now time.Time) *models.Token {
	t.Helper()
	tok, err := models.NewToken(id.InvitationTokenID(uuid.New()), id.EnvelopeID(uuid.New()), signerID, hash, time.Hour, nil, now)
	require.NoError(t, err)
	return tok
}

func TestInMemoryStore_SingleLiveTokenPerSigner(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	st := NewInMemory()
	signerID := id.SignerID(uuid.New())

	require.NoError(t, st.Create(ctx, newToken(t, signerID, "h1", now)))
	err := st.Create(ctx, newToken(t, signerID, "h2", now))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	revoked, err := st.RevokeLiveForSigner(ctx, signerID, models.ReasonReissued, now)
	require.NoError(t, err)
	require.Len(t, revoked, 1)
	assert.Equal(t, models.StatusRevoked, revoked[0].Status)

	require.NoError(t, st.Create(ctx, newToken(t, signerID, "h2", now)))
	live, err := st.FindLiveBySigner(ctx, signerID)
	require.NoError(t, err)
	assert.Equal(t, "h2", live.TokenHash)
}

func TestInMemoryStore_Consume(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	st := NewInMemory()
	require.NoError(t, st.Create(ctx, newToken(t, id.SignerID(uuid.New()), "h1", now)))

	_, err := st.Consume(ctx, "missing", now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	tok, err := st.Consume(ctx, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSigned, tok.Status)

	tok, err = st.Consume(ctx, "h1", now)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	assert.NotNil(t, tok, "record returned for replay detection")
}

func TestInMemoryStore_ExpiredTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	st := NewInMemory()
	require.NoError(t, st.Create(ctx, newToken(t, id.SignerID(uuid.New()), "h1", now)))

	_, err := st.RecordView(ctx, "h1", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	n, err := st.DeleteExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
