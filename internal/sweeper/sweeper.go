// Package sweeper runs periodic housekeeping jobs: expiring overdue
// envelopes, purging expired invitations and pruning dispatched outbox rows.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job is one housekeeping task. It returns how many rows it touched.
type Job struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (int, error)
}

type Sweeper struct {
	jobs     []Job
	interval time.Duration
	logger   *slog.Logger
	clock    func() time.Time
	runs     *prometheus.CounterVec
	affected *prometheus.CounterVec
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		s.clock = clock
	}
}

// WithRegisterer exports per-job run and row counters.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Sweeper) {
		factory := promauto.With(reg)
		s.runs = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_sweeper_runs_total",
			Help: "Sweeper job runs, by job and outcome",
		}, []string{"job", "outcome"})
		s.affected = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_sweeper_rows_total",
			Help: "Rows touched by sweeper jobs",
		}, []string{"job"})
	}
}

func New(interval time.Duration, jobs []Job, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Sweeper{
		jobs:     jobs,
		interval: interval,
		logger:   slog.New(slog.DiscardHandler),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started", "interval", s.interval, "jobs", len(s.jobs))
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs every job once. A failing job does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) map[string]int {
	now := s.clock()
	touched := make(map[string]int, len(s.jobs))
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return touched
		}
		n, err := job.Run(ctx, now)
		touched[job.Name] = n
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.ErrorContext(ctx, "sweeper job failed", "job", job.Name, "error", err)
			}
			s.record(job.Name, "error", n)
			continue
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "sweeper job finished", "job", job.Name, "rows", n)
		}
		s.record(job.Name, "ok", n)
	}
	return touched
}

func (s *Sweeper) record(job, outcome string, n int) {
	if s.runs == nil {
		return
	}
	s.runs.WithLabelValues(job, outcome).Inc()
	s.affected.WithLabelValues(job).Add(float64(n))
}
