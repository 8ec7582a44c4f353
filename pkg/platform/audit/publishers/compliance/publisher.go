// Package compliance provides a fail-closed audit publisher for regulatory
// events.
//
// Publisher emits compliance events with synchronous, fail-closed semantics.
// Events are written to the outbox and the caller blocks until the write
// succeeds. If the write fails, an error is returned and the calling
// operation must fail.
//
// Use for: cycle_completed, cycle_failed, customer_review_required
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "riskwatch/pkg/platform/audit"
)

// Publisher emits compliance events with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithClock overrides the timestamp source for events without one.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// New creates a compliance publisher.
// The store must be outbox-backed for guaranteed delivery.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes compliance events to the audit store in one
// append. Either all events persist or none do, and the error must fail
// the caller's operation.
func (p *Publisher) Emit(ctx context.Context, events ...audit.ComplianceEvent) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()

	stored := make([]audit.Event, 0, len(events))
	for _, event := range events {
		if event.CycleID.IsNil() {
			return errors.New("compliance event requires CycleID")
		}
		if event.Action == "" {
			return errors.New("compliance event requires Action")
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = p.now()
		}
		stored = append(stored, event.ToEvent())
	}

	if err := p.store.Append(ctx, stored...); err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", events[0].Action,
				"cycle_id", events[0].CycleID,
				"events", len(events),
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	p.metrics.ObservePersistDuration(time.Since(start))
	p.metrics.AddEventsEmitted(len(events))
	return nil
}
