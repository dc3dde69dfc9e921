// Package relay moves pending outbox rows to the event bus.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"signature-service/internal/outbox/metrics"
	"signature-service/internal/outbox/models"
	"signature-service/internal/outbox/publisher"
	id "signature-service/pkg/domain"
)

var tracer = otel.Tracer("signature-service/outbox/relay")

type Store interface {
	Lease(ctx context.Context, owner string, limit int, now time.Time, ttl time.Duration) ([]*models.Event, error)
	MarkDispatched(ctx context.Context, owner string, ids []id.OutboxEventID, now time.Time) error
	MarkFailed(ctx context.Context, owner string, failures []models.Failure) error
}

type Publisher interface {
	Publish(ctx context.Context, events []*models.Event) ([]publisher.Failure, error)
}

// Config tunes a relay. Zero values fall back to the defaults below.
type Config struct {
	WorkerID           string
	PollInterval       time.Duration
	BatchLimit         int
	MaxPublishAttempts int
	MaxAttempts        int
	LeaseTTL           time.Duration
	RetryInterval      time.Duration
	BackoffBase        time.Duration
	BackoffMax         time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerID == "" {
		// Lease ownership guards the marks, so every process needs its own id.
		c.WorkerID = "relay-" + uuid.NewString()[:8]
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 100
	}
	if c.MaxPublishAttempts <= 0 {
		c.MaxPublishAttempts = 3
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 200 * time.Millisecond
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 15 * time.Minute
	}
	return c
}

// Result summarises one flush.
type Result struct {
	Leased       int
	Dispatched   int
	Rescheduled  int
	DeadLettered int
	PublishCalls int
}

// Relay leases due rows and publishes them in chunks of at most ten.
type Relay struct {
	store     Store
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(r *Relay) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func New(store Store, pub Publisher, cfg Config, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		publisher: pub,
		cfg:       cfg.withDefaults(),
		logger:    slog.New(slog.DiscardHandler),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started",
		"worker_id", r.cfg.WorkerID,
		"poll_interval", r.cfg.PollInterval,
	)
	for {
		if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "outbox flush failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped", "worker_id", r.cfg.WorkerID)
			return nil
		case <-ticker.C:
		}
	}
}

// Flush leases due rows once and publishes them.
func (r *Relay) Flush(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "outbox.flush")
	defer span.End()
	start := time.Now()
	if r.metrics != nil {
		defer r.metrics.ObserveFlush(start)
	}

	var res Result
	leased, err := r.store.Lease(ctx, r.cfg.WorkerID, r.cfg.BatchLimit, r.clock(), r.cfg.LeaseTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lease failed")
		return res, fmt.Errorf("lease outbox: %w", err)
	}
	res.Leased = len(leased)
	span.SetAttributes(attribute.Int("outbox.leased", len(leased)))
	if len(leased) == 0 {
		return res, nil
	}

	for _, chunk := range models.Chunk(leased, models.MaxBatchSize) {
		if err := r.publishChunk(ctx, chunk, &res); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "flush incomplete")
			return res, err
		}
	}

	span.SetAttributes(
		attribute.Int("outbox.dispatched", res.Dispatched),
		attribute.Int("outbox.rescheduled", res.Rescheduled),
		attribute.Int("outbox.dead", res.DeadLettered),
	)
	if res.Rescheduled > 0 || res.DeadLettered > 0 {
		r.logger.WarnContext(ctx, "outbox flush had failures",
			"leased", res.Leased,
			"dispatched", res.Dispatched,
			"rescheduled", res.Rescheduled,
			"dead", res.DeadLettered,
		)
	}
	return res, nil
}

// publishChunk publishes one group of at most ten events. Entries the bus
// rejects are retried in the same flush; whatever is still failing afterwards
// is rescheduled with backoff or dead-lettered.
func (r *Relay) publishChunk(ctx context.Context, chunk []*models.Event, res *Result) error {
	pending := chunk
	reasons := make(map[id.OutboxEventID]string, len(chunk))
	var fatal error

	op := func() error {
		res.PublishCalls++
		failures, err := r.publisher.Publish(ctx, pending)
		if err != nil {
			r.countCall("error")
			for _, ev := range pending {
				reasons[ev.ID] = err.Error()
			}
			return err
		}

		failed := make(map[id.OutboxEventID]bool, len(failures))
		for _, f := range failures {
			failed[f.EventID] = true
			reasons[f.EventID] = f.Reason
		}
		var delivered []id.OutboxEventID
		var retry []*models.Event
		for _, ev := range pending {
			if failed[ev.ID] {
				retry = append(retry, ev)
				continue
			}
			delivered = append(delivered, ev.ID)
		}
		if len(delivered) > 0 {
			if err := r.store.MarkDispatched(ctx, r.cfg.WorkerID, delivered, r.clock()); err != nil {
				// Delivered but not recorded: the rows will be republished after the lease lapses.
				fatal = fmt.Errorf("mark dispatched: %w", err)
				return backoff.Permanent(fatal)
			}
			res.Dispatched += len(delivered)
			if r.metrics != nil {
				r.metrics.Dispatched.Add(float64(len(delivered)))
			}
		}
		pending = retry
		if len(pending) > 0 {
			r.countCall("partial")
			return fmt.Errorf("%d of %d entries rejected", len(pending), len(chunk))
		}
		r.countCall("ok")
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInterval
	b.MaxInterval = r.cfg.RetryInterval * 8
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxPublishAttempts-1)), ctx)

	_ = backoff.Retry(op, policy)
	if fatal != nil {
		return fatal
	}
	if len(pending) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		// Shutting down: leave the lease to expire instead of burning an attempt.
		return ctx.Err()
	}
	return r.reschedule(ctx, pending, reasons, res)
}

func (r *Relay) reschedule(ctx context.Context, pending []*models.Event, reasons map[id.OutboxEventID]string, res *Result) error {
	now := r.clock()
	failures := make([]models.Failure, 0, len(pending))
	dead := 0
	for _, ev := range pending {
		attempts := ev.Attempts + 1
		f := models.Failure{
			EventID:       ev.ID,
			Error:         truncate(reasons[ev.ID], 1000),
			NextAttemptAt: now.Add(NextBackoff(attempts, r.cfg.BackoffBase, r.cfg.BackoffMax)),
			Dead:          attempts >= r.cfg.MaxAttempts,
		}
		if f.Dead {
			dead++
			r.logger.ErrorContext(ctx, "outbox event dead-lettered",
				"event_id", ev.ID.String(),
				"event_type", ev.EventType,
				"attempts", attempts,
				"last_error", f.Error,
			)
		} else {
			res.Rescheduled++
		}
		failures = append(failures, f)
	}
	if err := r.store.MarkFailed(ctx, r.cfg.WorkerID, failures); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	res.DeadLettered += dead
	if r.metrics != nil {
		r.metrics.Failed.Add(float64(len(failures)))
		r.metrics.DeadLettered.Add(float64(dead))
	}
	return nil
}

func (r *Relay) countCall(result string) {
	if r.metrics != nil {
		r.metrics.PublishCalls.WithLabelValues(result).Inc()
	}
}

// NextBackoff is base * 2^(attempts-1), capped at ceiling.
func NextBackoff(attempts int, base, ceiling time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return min(d, ceiling)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
