// Package scheduler triggers screening cycles on a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	vmodels "riskwatch/internal/views/models"
)

// Cycler runs one full screening cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (*vmodels.CycleReport, error)
}

// PanicError wraps a value recovered from a panicking cycle.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("screening cycle panicked: %v", e.Value)
}

// Runner calls the cycler immediately and then once per interval. Cycles
// run on the Run goroutine, so they never overlap; ticks that fire while a
// cycle is still running are dropped.
type Runner struct {
	cycler   Cycler
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures the Runner.
type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithTimeout bounds each cycle. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func New(cycler Cycler, interval time.Duration, opts ...Option) *Runner {
	r := &Runner{
		cycler:   cycler,
		interval: interval,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is cancelled. Cycle failures are logged and the
// next tick tries again with a fresh cycle.
func (r *Runner) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", r.interval)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "screening scheduler started", "interval", r.interval, "cycle_timeout", r.timeout)
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "scheduled screening cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "screening scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs a single cycle under the configured timeout. A panic inside
// the cycle is returned as *PanicError.
func (r *Runner) RunOnce(ctx context.Context) (report *vmodels.CycleReport, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if v := recover(); v != nil {
			report, err = nil, &PanicError{Value: v}
		}
	}()

	report, err = r.cycler.RunCycle(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("screening cycle exceeded %s: %w", r.timeout, err)
	}
	return report, err
}
