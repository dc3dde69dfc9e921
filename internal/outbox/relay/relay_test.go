package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"signature-service/internal/outbox/metrics"
	"signature-service/internal/outbox/models"
	"signature-service/internal/outbox/publisher"
	"signature-service/internal/outbox/store"
	id "signature-service/pkg/domain"
)

// scriptedPublisher rejects events according to a per-event budget of failures.
type scriptedPublisher struct {
	mu         sync.Mutex
	calls      [][]*models.Event
	failTimes  map[id.OutboxEventID]int
	callErr    error
	alwaysFail bool
}

func (p *scriptedPublisher) Publish(_ context.Context, events []*models.Event) ([]publisher.Failure, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, events)
	if p.callErr != nil {
		return nil, p.callErr
	}
	var failures []publisher.Failure
	for _, ev := range events {
		if p.alwaysFail || p.failTimes[ev.ID] > 0 {
			if p.failTimes[ev.ID] > 0 {
				p.failTimes[ev.ID]--
			}
			failures = append(failures, publisher.Failure{EventID: ev.ID, Reason: "InternalFailure"})
		}
	}
	return failures, nil
}

type RelaySuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *store.InMemoryStore
	pub     *scriptedPublisher
	metrics *metrics.Metrics
	relay   *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.store = store.NewInMemory()
	s.pub = &scriptedPublisher{failTimes: map[id.OutboxEventID]int{}}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.relay = New(s.store, s.pub, Config{
		WorkerID:           "test",
		BatchLimit:         100,
		MaxPublishAttempts: 3,
		MaxAttempts:        2,
		RetryInterval:      time.Millisecond,
		BackoffBase:        time.Minute,
		BackoffMax:         time.Hour,
	}, WithMetrics(s.metrics), WithClock(func() time.Time { return s.now }))
}

func (s *RelaySuite) appendEvents(n int) []*models.Event {
	var out []*models.Event
	for range n {
		ev, err := models.NewEvent("envelope", "env-1", "ENVELOPE_SENT", map[string]string{}, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Append(s.ctx, ev))
		out = append(out, ev)
	}
	return out
}

func (s *RelaySuite) TestFlushChunksIntoBatchesOfTen() {
	s.appendEvents(25)

	res, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(25, res.Leased)
	s.Equal(25, res.Dispatched)
	s.Require().Len(s.pub.calls, 3)
	for _, call := range s.pub.calls {
		s.LessOrEqual(len(call), models.MaxBatchSize)
	}
	s.Len(s.pub.calls[2], 5)

	dispatched, err := s.store.ListByStatus(s.ctx, models.StatusDispatched, 0)
	s.Require().NoError(err)
	s.Len(dispatched, 25)
	for _, ev := range dispatched {
		s.True(ev.Dispatched())
	}
	s.Equal(25.0, testutil.ToFloat64(s.metrics.Dispatched))
}

func (s *RelaySuite) TestPartialFailureRetriesOnlyRejectedEntries() {
	events := s.appendEvents(4)
	s.pub.failTimes[events[1].ID] = 1
	s.pub.failTimes[events[3].ID] = 2

	res, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, res.Dispatched)
	s.Zero(res.Rescheduled)

	s.Require().Len(s.pub.calls, 3)
	s.Len(s.pub.calls[0], 4)
	s.Len(s.pub.calls[1], 2, "second call carries only the two rejected entries")
	s.Len(s.pub.calls[2], 1)
	s.Equal(events[3].ID, s.pub.calls[2][0].ID)
}

func (s *RelaySuite) TestExhaustedRetriesAreRescheduledWithBackoff() {
	events := s.appendEvents(2)
	s.pub.failTimes[events[0].ID] = 10

	res, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Dispatched)
	s.Equal(1, res.Rescheduled)
	s.Equal(3, res.PublishCalls)

	ev, err := s.store.Get(s.ctx, events[0].ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, ev.Status)
	s.Equal(1, ev.Attempts)
	s.Equal("InternalFailure", ev.LastError)
	s.Equal(s.now.Add(time.Minute), ev.NextAttemptAt)
	s.Nil(ev.LeaseExpiresAt)

	res, err = s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Zero(res.Leased, "row is not due until its backoff elapses")
}

func (s *RelaySuite) TestDeadLetterAfterMaxAttempts() {
	events := s.appendEvents(1)
	s.pub.alwaysFail = true

	_, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)

	s.now = s.now.Add(2 * time.Minute)
	res, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.DeadLettered)

	ev, err := s.store.Get(s.ctx, events[0].ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDead, ev.Status)
	s.Equal(2, ev.Attempts)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DeadLettered))

	s.now = s.now.Add(24 * time.Hour)
	res, err = s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Zero(res.Leased)

	s.Require().NoError(s.store.Requeue(s.ctx, events[0].ID, s.now))
	s.pub.alwaysFail = false
	res, err = s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Dispatched)
}

func (s *RelaySuite) TestWholeCallErrorCountsAgainstEveryEntry() {
	s.appendEvents(3)
	s.pub.callErr = errors.New("connection reset")

	res, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, res.Rescheduled)
	s.Equal(3, res.PublishCalls)

	pending, err := s.store.ListByStatus(s.ctx, models.StatusPending, 0)
	s.Require().NoError(err)
	for _, ev := range pending {
		s.Equal("connection reset", ev.LastError)
	}
}

func (s *RelaySuite) TestLeasedRowsAreSkippedByOtherWorkers() {
	s.appendEvents(2)
	leased, err := s.store.Lease(s.ctx, "other", 10, s.now, time.Minute)
	s.Require().NoError(err)
	s.Len(leased, 2)

	res, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Zero(res.Leased)

	s.now = s.now.Add(2 * time.Minute)
	res, err = s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, res.Dispatched, "expired leases are reclaimed")
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("relay did not stop")
	}
}

func TestNextBackoff(t *testing.T) {
	suite.Run(t, new(backoffSuite))
}

type backoffSuite struct{ suite.Suite }

func (s *backoffSuite) TestDoublesAndCaps() {
	s.Equal(time.Second, NextBackoff(1, time.Second, time.Minute))
	s.Equal(2*time.Second, NextBackoff(2, time.Second, time.Minute))
	s.Equal(8*time.Second, NextBackoff(4, time.Second, time.Minute))
	s.Equal(time.Minute, NextBackoff(20, time.Second, time.Minute))
	s.Equal(time.Second, NextBackoff(0, time.Second, time.Minute))
}
