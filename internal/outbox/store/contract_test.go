package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signature-service/internal/outbox/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
)

type outboxStore interface {
	Append(ctx context.Context, event *models.Event) error
	Lease(ctx context.Context, owner string, limit int, now time.Time, ttl time.Duration) ([]*models.Event, error)
	MarkDispatched(ctx context.Context, owner string, ids []id.OutboxEventID, now time.Time) error
	MarkFailed(ctx context.Context, owner string, failures []models.Failure) error
	Get(ctx context.Context, eventID id.OutboxEventID) (*models.Event, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Event, error)
	Requeue(ctx context.Context, eventID id.OutboxEventID, now time.Time) error
	DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// runContract exercises behaviour both outbox stores must share. fresh
// returns an empty store for each subtest.
func runContract(t *testing.T, fresh func(t *testing.T) outboxStore) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	appendAt := func(t *testing.T, st outboxStore, at time.Time) *models.Event {
		t.Helper()
		ev, err := models.NewEvent("envelope", uuid.NewString(), "ENVELOPE_SENT", map[string]string{"status": "READY_FOR_SIGNATURE"}, at)
		require.NoError(t, err)
		require.NoError(t, st.Append(ctx, ev))
		return ev
	}

	t.Run("lease returns due rows oldest first and hides them until the lease lapses", func(t *testing.T) {
		st := fresh(t)
		second := appendAt(t, st, now.Add(-time.Minute))
		first := appendAt(t, st, now.Add(-2*time.Minute))
		appendAt(t, st, now.Add(time.Hour))

		leased, err := st.Lease(ctx, "relay-a", 10, now, 30*time.Second)
		require.NoError(t, err)
		require.Len(t, leased, 2)
		assert.Equal(t, first.ID, leased[0].ID)
		assert.Equal(t, second.ID, leased[1].ID)
		assert.Equal(t, "relay-a", leased[0].LeaseOwner)

		again, err := st.Lease(ctx, "relay-b", 10, now.Add(10*time.Second), 30*time.Second)
		require.NoError(t, err)
		assert.Empty(t, again)

		lapsed, err := st.Lease(ctx, "relay-b", 10, now.Add(time.Minute), 30*time.Second)
		require.NoError(t, err)
		assert.Len(t, lapsed, 2)
	})

	t.Run("lease honours the limit", func(t *testing.T) {
		st := fresh(t)
		for i := range 3 {
			appendAt(t, st, now.Add(-time.Duration(i)*time.Second))
		}
		leased, err := st.Lease(ctx, "relay", 2, now, time.Minute)
		require.NoError(t, err)
		assert.Len(t, leased, 2)
	})

	t.Run("dispatched rows are not leased again and can be pruned", func(t *testing.T) {
		st := fresh(t)
		ev := appendAt(t, st, now)
		_, err := st.Lease(ctx, "relay", 10, now, time.Minute)
		require.NoError(t, err)
		require.NoError(t, st.MarkDispatched(ctx, "relay", []id.OutboxEventID{ev.ID}, now))

		got, err := st.Get(ctx, ev.ID)
		require.NoError(t, err)
		assert.True(t, got.Dispatched())

		leased, err := st.Lease(ctx, "relay", 10, now.Add(time.Hour), time.Minute)
		require.NoError(t, err)
		assert.Empty(t, leased)

		n, err := st.DeleteDispatchedBefore(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = st.Get(ctx, ev.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("marks from a relay whose lease was taken over are ignored", func(t *testing.T) {
		st := fresh(t)
		ev := appendAt(t, st, now)
		_, err := st.Lease(ctx, "relay-a", 10, now, 30*time.Second)
		require.NoError(t, err)
		taken, err := st.Lease(ctx, "relay-b", 10, now.Add(time.Minute), 30*time.Second)
		require.NoError(t, err)
		require.Len(t, taken, 1)

		require.NoError(t, st.MarkFailed(ctx, "relay-a", []models.Failure{
			{EventID: ev.ID, Error: "timeout", NextAttemptAt: now.Add(time.Hour)},
		}))
		require.NoError(t, st.MarkDispatched(ctx, "relay-a", []id.OutboxEventID{ev.ID}, now))

		got, err := st.Get(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, 0, got.Attempts)
		assert.Equal(t, "relay-b", got.LeaseOwner)

		require.NoError(t, st.MarkDispatched(ctx, "relay-b", []id.OutboxEventID{ev.ID}, now.Add(time.Minute)))
		got, err = st.Get(ctx, ev.ID)
		require.NoError(t, err)
		assert.True(t, got.Dispatched())
	})

	t.Run("dispatch scrubs the invitation secret", func(t *testing.T) {
		st := fresh(t)
		ev, err := models.NewEvent("envelope", uuid.NewString(), "INVITATION_ISSUED",
			map[string]string{"email": "a@example.com", "token": "plaintext-secret"}, now)
		require.NoError(t, err)
		require.NoError(t, st.Append(ctx, ev))
		_, err = st.Lease(ctx, "relay", 10, now, time.Minute)
		require.NoError(t, err)
		require.NoError(t, st.MarkDispatched(ctx, "relay", []id.OutboxEventID{ev.ID}, now))

		got, err := st.Get(ctx, ev.ID)
		require.NoError(t, err)
		assert.NotContains(t, string(got.Payload), "plaintext-secret")
		assert.Contains(t, string(got.Payload), "a@example.com")
	})

	t.Run("failures reschedule and dead rows can be requeued", func(t *testing.T) {
		st := fresh(t)
		retry := appendAt(t, st, now)
		dead := appendAt(t, st, now)
		_, err := st.Lease(ctx, "relay", 10, now, time.Minute)
		require.NoError(t, err)
		require.NoError(t, st.MarkFailed(ctx, "relay", []models.Failure{
			{EventID: retry.ID, Error: "throttled", NextAttemptAt: now.Add(time.Minute)},
			{EventID: dead.ID, Error: "AccessDenied", NextAttemptAt: now, Dead: true},
		}))

		got, err := st.Get(ctx, retry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, "throttled", got.LastError)

		deadRows, err := st.ListByStatus(ctx, models.StatusDead, 10)
		require.NoError(t, err)
		require.Len(t, deadRows, 1)
		assert.Equal(t, dead.ID, deadRows[0].ID)

		assert.ErrorIs(t, st.Requeue(ctx, retry.ID, now), sentinel.ErrInvalidState)
		assert.ErrorIs(t, st.Requeue(ctx, id.OutboxEventID(uuid.New()), now), sentinel.ErrNotFound)
		require.NoError(t, st.Requeue(ctx, dead.ID, now.Add(time.Second)))

		got, err = st.Get(ctx, dead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, 0, got.Attempts)
	})
}
