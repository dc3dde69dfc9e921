package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one recorded outcome and the breaker state expected after it.
type step struct {
	fail       bool
	wantOpen   bool
	wantChange StateChange
}

func run(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, s := range steps {
		var change StateChange
		if s.fail {
			_, change = b.RecordFailure()
		} else {
			_, change = b.RecordSuccess()
		}
		require.Equal(t, s.wantChange, change, "step %d", i)
		require.Equal(t, s.wantOpen, b.IsOpen(), "step %d", i)
	}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the threshold failure",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true},
				{fail: true, wantOpen: true, wantChange: StateChange{Opened: true}},
				{fail: true, wantOpen: true},
			},
		},
		{
			name: "success in between restarts the failure count",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true},
				{},
				{fail: true},
				{fail: true, wantOpen: true, wantChange: StateChange{Opened: true}},
			},
		},
		{
			name: "closes after consecutive successes",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true, wantChange: StateChange{Opened: true}},
				{wantOpen: true},
				{wantChange: StateChange{Closed: true}},
			},
		},
		{
			name: "failure while recovering restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true, wantChange: StateChange{Opened: true}},
				{wantOpen: true},
				{fail: true, wantOpen: true},
				{wantOpen: true},
				{wantChange: StateChange{Closed: true}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run(t, New("revocations", tt.opts...), tt.steps)
		})
	}
}

func TestRecordReturnsRoutingHint(t *testing.T) {
	b := New("buckets", WithFailureThreshold(1))

	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback)

	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary, "one success is below the default close threshold")
}

func TestAllowRespectsCooldown(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := New("buckets",
		WithFailureThreshold(1),
		WithCooldown(30*time.Second),
		WithClock(func() time.Time { return now }),
	)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(29 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "trial call allowed once the cooldown elapses")
	assert.Equal(t, "open", b.State().String())

	b.RecordFailure()
	assert.False(t, b.Allow(), "a failed trial call restarts the cooldown")
}

func TestResetClosesAndClearsCounts(t *testing.T) {
	b := New("revocations", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "revocations", b.Name())
	_, change := b.RecordFailure()
	assert.False(t, change.Opened)
}
