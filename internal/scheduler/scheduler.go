// Package scheduler drives reconciliation cycles at a fixed period.
//
// Cycles never overlap. The wait after a cycle is the period minus the time
// the cycle took, so slow cycles do not push the schedule back. A cycle that
// fails or panics is logged and the loop carries on.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/aliddns/internal/metrics"
	"gitlab.bluewillows.net/root/aliddns/internal/reconciler"
)

// Runner runs one reconciliation cycle.
type Runner interface {
	Reconcile(ctx context.Context) (*reconciler.Result, error)
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(ctx context.Context) (*reconciler.Result, error)

// Reconcile calls f(ctx).
func (f RunnerFunc) Reconcile(ctx context.Context) (*reconciler.Result, error) {
	return f(ctx)
}

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	// NewTimer returns a channel that fires once after d and a function
	// that stops the timer.
	NewTimer(d time.Duration) (<-chan time.Time, func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// ErrInvalidPeriod is returned by Run when the period is not positive.
var ErrInvalidPeriod = errors.New("scheduler period must be positive")

// Status is the outcome of the most recent cycle.
type Status struct {
	Result   *reconciler.Result
	Err      error
	Started  time.Time
	Finished time.Time
	Cycles   int
}

// Scheduler runs a Runner every period until its context is cancelled.
type Scheduler struct {
	runner Runner
	period time.Duration
	clock  Clock
	logger *slog.Logger

	mu   sync.RWMutex
	last Status
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

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a scheduler that runs runner every period.
func New(runner Runner, period time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		period: period,
		clock:  realClock{},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Period returns the configured cycle period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// NextDelay returns how long to wait after a cycle that took elapsed so the
// next one starts one period after the previous start.
func NextDelay(period, elapsed time.Duration) time.Duration {
	if elapsed >= period {
		return 0
	}
	return period - elapsed
}

// Run loops until ctx is cancelled. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.period <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, s.period)
	}

	s.logger.Info("scheduler started", slog.Duration("period", s.period))

	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}

		start := s.clock.Now()
		s.RunOnce(ctx)
		elapsed := s.clock.Now().Sub(start)

		delay := NextDelay(s.period, elapsed)
		if elapsed > s.period {
			s.logger.Warn("cycle overran period, starting next cycle immediately",
				slog.Duration("elapsed", elapsed),
				slog.Duration("period", s.period),
			)
		}
		s.logger.Debug("next cycle scheduled", slog.Duration("in", delay))

		fired, stop := s.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-fired:
		}
	}
}

// RunOnce runs a single cycle and records its outcome. Panics in the runner
// are recovered and reported as the cycle's error.
func (s *Scheduler) RunOnce(ctx context.Context) (*reconciler.Result, error) {
	started := s.clock.Now()
	result, err := s.runCycle(ctx)

	s.mu.Lock()
	s.last = Status{
		Result:   result,
		Err:      err,
		Started:  started,
		Finished: s.clock.Now(),
		Cycles:   s.last.Cycles + 1,
	}
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("cycle interrupted by shutdown", slog.String("error", err.Error()))
		} else {
			s.logger.Error("cycle failed", slog.String("error", err.Error()))
		}
	}

	return result, err
}

func (s *Scheduler) runCycle(ctx context.Context) (result *reconciler.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ReconciliationsTotal.WithLabelValues("panic").Inc()
			err = fmt.Errorf("reconciliation panicked: %v", r)
		}
	}()
	return s.runner.Reconcile(ctx)
}

// LastResult returns the outcome of the most recent cycle. Cycles is zero
// until the first cycle finishes.
func (s *Scheduler) LastResult() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Check reports an error when the most recent cycle failed. It has the shape
// of a health checker.
func (s *Scheduler) Check(ctx context.Context) error {
	last := s.LastResult()
	if last.Cycles == 0 {
		return nil
	}
	if last.Err != nil {
		return fmt.Errorf("last cycle failed: %w", last.Err)
	}
	if last.Result != nil && last.Result.HasErrors() {
		return fmt.Errorf("last cycle had %d failed actions", last.Result.FailedCount())
	}
	return nil
}
