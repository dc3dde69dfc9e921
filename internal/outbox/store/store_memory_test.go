package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signature-service/internal/outbox/models"
	"signature-service/pkg/platform/sentinel"
)

func TestInMemoryStoreContract(t *testing.T) {
	runContract(t, func(*testing.T) outboxStore { return NewInMemory() })
}

func TestInMemoryStore_AppendRejectsDuplicateIDs(t *testing.T) {
	st := NewInMemory()
	ev, err := models.NewEvent("envelope", uuid.NewString(), "ENVELOPE_CREATED", nil, time.Now())
	require.NoError(t, err)

	require.NoError(t, st.Append(context.Background(), ev))
	assert.ErrorIs(t, st.Append(context.Background(), ev), sentinel.ErrConflict)
}
