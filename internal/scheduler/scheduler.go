package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/metrics"
)

// DefaultPollInterval is how often the scheduler checks for due jobs.
const DefaultPollInterval = 500 * time.Millisecond

var errPanicked = errors.New("job panicked")

// Job is one unit of recurring work, typically the sync of a single record.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// entry is a registered job and its next activation.
type entry struct {
	job  Job
	next time.Time
}

// Scheduler fires every registered job on the same schedule.
//
// Due jobs run one after another on the goroutine calling Run, so runs never
// overlap. After a job finishes its next activation is computed from the finish
// time, which skips activations missed while it was running instead of queueing them.
type Scheduler struct {
	schedule     *Schedule
	pollInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu      sync.Mutex
	entries []*entry
}

// Option is a functional option for configuring the Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClock replaces time.Now (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler for schedule.
func New(schedule *Schedule, opts ...Option) *Scheduler {
	s := &Scheduler{
		schedule:     schedule,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Add registers job. Its first activation is the next schedule time after now.
func (s *Scheduler) Add(job Job) {
	next := s.schedule.Next(s.now())

	s.mu.Lock()
	s.entries = append(s.entries, &entry{job: job, next: next})
	count := len(s.entries)
	s.mu.Unlock()

	metrics.ScheduledJobs.Set(float64(count))

	s.logger.Debug("scheduled job",
		slog.String("job", job.Name),
		slog.Time("next_run", next),
	)
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NextRun returns the earliest pending activation, or false when no jobs are registered.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	for _, e := range s.entries {
		if earliest.IsZero() || e.next.Before(earliest) {
			earliest = e.next
		}
	}
	return earliest, !earliest.IsZero()
}

// Tick runs every job whose activation time has passed, in registration order.
// A failing job is logged and does not affect the others. Tick returns the number
// of jobs run and how many of them failed.
func (s *Scheduler) Tick(ctx context.Context) (ran, failed int) {
	s.mu.Lock()
	entries := make([]*entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	now := s.now()
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if now.Before(e.next) {
			continue
		}

		ran++
		if err := s.runJob(ctx, e.job); err != nil {
			failed++
		}

		next := s.schedule.Next(s.now())
		s.mu.Lock()
		e.next = next
		s.mu.Unlock()
	}

	if ran > 0 {
		result := metrics.ResultSuccess
		if failed > 0 {
			result = metrics.ResultError
		}
		metrics.PassesTotal.WithLabelValues(metrics.ModeScheduled, result).Inc()
	}

	return ran, failed
}

// runJob runs one job, converting a panic into a logged failure.
func (s *Scheduler) runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				slog.String("job", job.Name),
				slog.Any("panic", r),
			)
			err = errPanicked
		}
	}()

	start := s.now()
	err = job.Run(ctx)
	if err != nil {
		s.logger.Error("job failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Debug("job completed",
		slog.String("job", job.Name),
		slog.Duration("duration", s.now().Sub(start)),
	)
	return nil
}

// Run polls for due jobs until ctx is canceled. It always returns nil after cancellation;
// a job that is running when ctx is canceled finishes its current provider call first.
func (s *Scheduler) Run(ctx context.Context) error {
	if next, ok := s.NextRun(); ok {
		s.logger.Info("scheduler started",
			slog.String("cron", s.schedule.String()),
			slog.String("timezone", s.schedule.Location().String()),
			slog.Int("jobs", s.Len()),
			slog.Time("next_run", next),
		)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
