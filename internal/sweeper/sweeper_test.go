package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRunsEveryJobDespiteFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var seen []time.Time
	reg := prometheus.NewRegistry()

	s := New(time.Minute, []Job{
		{Name: "broken", Run: func(_ context.Context, at time.Time) (int, error) {
			seen = append(seen, at)
			return 0, errors.New("db down")
		}},
		{Name: "expire", Run: func(_ context.Context, at time.Time) (int, error) {
			seen = append(seen, at)
			return 3, nil
		}},
	}, WithClock(func() time.Time { return now }), WithRegisterer(reg))

	touched := s.Sweep(context.Background())

	assert.Equal(t, map[string]int{"broken": 0, "expire": 3}, touched)
	assert.Equal(t, []time.Time{now, now}, seen)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.runs.WithLabelValues("broken", "error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(s.affected.WithLabelValues("expire")))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	s := New(time.Hour, []Job{{Name: "once", Run: func(context.Context, time.Time) (int, error) {
		calls++
		cancel()
		return 0, nil
	}}})

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, calls)
}
