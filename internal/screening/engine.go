// Package screening runs the batch cycle: it loads every fact, rebuilds the
// address history and watchlist matches for all customers, aggregates risk
// and replaces the published views in one step.
package screening

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/risk"
	"riskwatch/internal/screening/metrics"
	"riskwatch/internal/temporal"
	vmodels "riskwatch/internal/views/models"
	"riskwatch/internal/watchlist"
	id "riskwatch/pkg/domain"
	audit "riskwatch/pkg/platform/audit"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"

	// Partition workers poll for cancellation this often.
	cancelCheckEvery = 256

	failureAuditTimeout = 5 * time.Second
)

// ErrCycleRunning is returned when RunCycle is called while another cycle
// is still in progress on the same engine.
var ErrCycleRunning = errors.New("screening cycle already running")

// Engine recomputes every output view from scratch on each cycle.
type Engine struct {
	source     EventSource
	views      ViewPublisher
	auditor    AuditPublisher
	holder     *watchlist.Holder
	partitions int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time

	running sync.Mutex
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPartitions sets how many customer ranges are processed in parallel.
func WithPartitions(n int) Option {
	return func(e *Engine) { e.partitions = n }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAuditor enables compliance events for review flags and cycle
// outcomes. Review events are written before the views are published; a
// failed write abandons the cycle.
func WithAuditor(a AuditPublisher) Option {
	return func(e *Engine) { e.auditor = a }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New constructs an engine reading from source and publishing to views.
func New(source EventSource, views ViewPublisher, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		views:      views,
		holder:     &watchlist.Holder{},
		partitions: runtime.GOMAXPROCS(0),
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer("riskwatch/internal/screening"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.partitions < 1 {
		e.partitions = 1
	}
	return e
}

// Holder exposes the snapshot holder the engine swaps into.
func (e *Engine) Holder() *watchlist.Holder {
	return e.holder
}

// unit is one customer's slice of the batch. record is nil for address
// events whose customer is not in the master.
type unit struct {
	id     id.CustomerID
	record *models.CustomerRecord
	events []models.AddressEvent
}

type bounds struct{ lo, hi int }

// cycle is the working state of one RunCycle call.
type cycle struct {
	id      id.CycleID
	started time.Time
	logger  *slog.Logger

	batch      *models.Batch
	snapshot   *watchlist.Snapshot
	units      []unit
	parts      []bounds
	timelines  []*temporal.Timeline // by partition
	screenings []watchlist.Screening
	profiles   []risk.Profile
	set        *vmodels.ViewSet
}

type step struct {
	stage Stage
	run   func(context.Context, *cycle) error
}

// RunCycle executes one full screening pass. On success the new views are
// live and the report describes them. On failure nothing is published and
// the error is a *CycleError naming the stage.
func (e *Engine) RunCycle(ctx context.Context) (*vmodels.CycleReport, error) {
	if !e.running.TryLock() {
		return nil, ErrCycleRunning
	}
	defer e.running.Unlock()

	c := &cycle{id: id.NewCycleID(), started: e.now()}
	c.logger = e.logger.With("cycle_id", c.id.String())

	ctx, span := e.tracer.Start(ctx, "screening.cycle",
		trace.WithAttributes(attribute.String("cycle.id", c.id.String())))
	defer span.End()

	c.logger.InfoContext(ctx, "screening cycle started")

	steps := []step{
		{StageLoad, e.load},
		{StageSnapshot, e.snapshot},
		{StageProject, e.project},
		{StageMatch, e.match},
		{StageAggregate, e.aggregate},
		{StageAudit, e.auditReviews},
		{StagePublish, e.publish},
	}
	for _, s := range steps {
		if err := e.stage(ctx, c, s); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(err.Stage))
			return nil, e.fail(ctx, c, err)
		}
	}

	report := c.set.Cycle
	span.SetAttributes(
		attribute.Int("cycle.customers", report.Customers),
		attribute.Int64("watchlist.version", report.WatchlistVersion),
	)
	e.complete(ctx, c)
	return &report, nil
}

func (e *Engine) stage(ctx context.Context, c *cycle, s step) *CycleError {
	if err := ctx.Err(); err != nil {
		return &CycleError{CycleID: c.id, Stage: s.stage, Err: err}
	}
	ctx, span := e.tracer.Start(ctx, "screening."+string(s.stage))
	defer span.End()

	start := time.Now()
	err := s.run(ctx, c)
	e.metrics.ObserveStage(string(s.stage), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &CycleError{CycleID: c.id, Stage: s.stage, Err: err}
	}
	return nil
}

func (e *Engine) load(ctx context.Context, c *cycle) error {
	batch, err := e.source.Load(ctx)
	if err != nil {
		return err
	}
	if batch == nil {
		return errors.New("event source returned no batch")
	}
	c.batch = batch
	c.units = buildUnits(batch)
	c.parts = partition(len(c.units), e.partitions)
	c.logger.DebugContext(ctx, "screening inputs loaded",
		"customers", len(batch.Customers),
		"address_events", len(batch.AddressEvents),
		"pep_entities", len(batch.PEPEntities),
		"sanctions_entities", len(batch.SanctionsEntities),
		"partitions", len(c.parts),
	)
	return nil
}

// snapshot reuses the current watchlist snapshot while the store version is
// unchanged and otherwise builds and swaps in a new one.
func (e *Engine) snapshot(ctx context.Context, c *cycle) error {
	if cur := e.holder.Current(); cur != nil && cur.Version() == c.batch.WatchlistVersion {
		c.snapshot = cur
		return nil
	}

	snap := watchlist.NewSnapshot(c.batch.WatchlistVersion, c.batch.PEPEntities, c.batch.SanctionsEntities, e.now())
	e.holder.Swap(snap)
	c.snapshot = snap

	for kind, reasons := range snap.Skipped() {
		for reason, n := range reasons {
			e.metrics.AddSkipped(string(kind), reason, n)
			if n > 0 {
				c.logger.WarnContext(ctx, "watchlist entities excluded from matching",
					"watchlist", kind, "reason", reason, "count", n)
			}
		}
	}
	pep, sanctions := snap.Size()
	c.logger.InfoContext(ctx, "watchlist snapshot built",
		"watchlist_version", snap.Version(), "pep_entities", pep, "sanctions_entities", sanctions)
	return nil
}

func (e *Engine) project(ctx context.Context, c *cycle) error {
	c.timelines = make([]*temporal.Timeline, len(c.parts))
	return forEachPartition(ctx, c.parts, func(ctx context.Context, p int, b bounds) error {
		var events []models.AddressEvent
		for i := b.lo; i < b.hi; i++ {
			events = append(events, c.units[i].events...)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.timelines[p] = temporal.Project(events)
		return nil
	})
}

func (e *Engine) match(ctx context.Context, c *cycle) error {
	matcher := watchlist.NewMatcher(c.snapshot)
	c.screenings = make([]watchlist.Screening, len(c.units))
	return forEachPartition(ctx, c.parts, func(ctx context.Context, _ int, b bounds) error {
		for i := b.lo; i < b.hi; i++ {
			if (i-b.lo)%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if rec := c.units[i].record; rec != nil {
				c.screenings[i] = matcher.Screen(*rec)
			}
		}
		return nil
	})
}

func (e *Engine) aggregate(ctx context.Context, c *cycle) error {
	c.profiles = make([]risk.Profile, len(c.units))
	err := forEachPartition(ctx, c.parts, func(ctx context.Context, _ int, b bounds) error {
		for i := b.lo; i < b.hi; i++ {
			if (i-b.lo)%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			rec := c.units[i].record
			if rec == nil {
				continue
			}
			c.profiles[i] = risk.Aggregate(risk.Input{
				CustomerID: rec.CustomerID,
				HasAnomaly: rec.HasAnomaly,
				PEP:        c.screenings[i].PEP,
				Sanctions:  c.screenings[i].Sanctions,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.set = buildViews(c)
	return nil
}

// auditReviews records one compliance event per flagged customer. It runs
// before publishing so a view never shows a review flag the audit trail
// does not hold.
func (e *Engine) auditReviews(ctx context.Context, c *cycle) error {
	if e.auditor == nil {
		return nil
	}
	var events []audit.ComplianceEvent
	for _, p := range c.set.Profiles {
		if !p.RequiresReview() {
			continue
		}
		events = append(events, audit.ComplianceEvent{
			Timestamp: c.started,
			CycleID:   c.id,
			Subject:   p.CustomerID.String(),
			Action:    string(audit.EventCustomerReviewRequired),
			Decision:  string(p.OverallRating),
			Reason:    string(p.Reason),
		})
	}
	return e.auditor.Emit(ctx, events...)
}

func (e *Engine) publish(ctx context.Context, c *cycle) error {
	c.set.Cycle.FinishedAt = e.now()
	return e.views.Replace(ctx, c.set)
}

func (e *Engine) complete(ctx context.Context, c *cycle) {
	report := c.set.Cycle

	e.metrics.ObserveCycle(outcomeCompleted, report.Duration())
	e.metrics.AddCustomers(report.Customers)
	e.metrics.SetWatchlistVersion(report.WatchlistVersion)
	ratings := make(map[string]int, len(report.Ratings))
	for r, n := range report.Ratings {
		ratings[string(r)] = n
	}
	e.metrics.SetRatings(ratings)
	for _, p := range c.set.Profiles {
		for _, m := range p.Matches {
			e.metrics.IncMatch(string(m.Kind), string(m.Type))
		}
	}

	if e.auditor != nil {
		// The views are already live; a lost completion record is logged
		// rather than reported as a failed cycle.
		err := e.auditor.Emit(ctx, audit.ComplianceEvent{
			Timestamp: report.FinishedAt,
			CycleID:   c.id,
			Action:    string(audit.EventCycleCompleted),
			Decision:  outcomeCompleted,
			Reason: fmt.Sprintf("customers=%d review_required=%d watchlist_version=%d",
				report.Customers, report.ReviewRequired, report.WatchlistVersion),
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "cycle completion audit failed", "error", err)
		}
	}

	c.logger.InfoContext(ctx, "screening cycle completed",
		"customers", report.Customers,
		"history_rows", report.HistoryRows,
		"pep_matches", report.PEPMatches,
		"sanctions_matches", report.SanctionsMatches,
		"review_required", report.ReviewRequired,
		"watchlist_version", report.WatchlistVersion,
		"duration", report.Duration(),
	)
}

func (e *Engine) fail(ctx context.Context, c *cycle, cerr *CycleError) error {
	e.metrics.ObserveCycle(outcomeFailed, e.now().Sub(c.started))
	c.logger.ErrorContext(ctx, "screening cycle failed", "stage", cerr.Stage, "error", cerr.Err)

	if e.auditor != nil {
		// The cycle context may already be cancelled; the failure record
		// still needs to land.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureAuditTimeout)
		defer cancel()
		err := e.auditor.Emit(actx, audit.ComplianceEvent{
			CycleID:  c.id,
			Action:   string(audit.EventCycleFailed),
			Decision: outcomeFailed,
			Reason:   string(cerr.Stage),
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "cycle failure audit failed", "error", err)
		}
	}
	return cerr
}

// buildUnits joins customers with their address events and orders the
// result by customer ID so partitions are contiguous ID ranges.
func buildUnits(b *models.Batch) []unit {
	index := make(map[id.CustomerID]int, len(b.Customers))
	units := make([]unit, 0, len(b.Customers))
	for i := range b.Customers {
		rec := &b.Customers[i]
		if _, dup := index[rec.CustomerID]; dup {
			continue
		}
		index[rec.CustomerID] = len(units)
		units = append(units, unit{id: rec.CustomerID, record: rec})
	}
	for _, ev := range b.AddressEvents {
		i, ok := index[ev.CustomerID]
		if !ok {
			i = len(units)
			index[ev.CustomerID] = i
			units = append(units, unit{id: ev.CustomerID})
		}
		units[i].events = append(units[i].events, ev)
	}
	slices.SortFunc(units, func(a, b unit) int { return cmp.Compare(a.id, b.id) })
	return units
}

// partition splits n items into at most parts contiguous ranges whose
// sizes differ by at most one.
func partition(n, parts int) []bounds {
	if n == 0 {
		return nil
	}
	parts = max(1, min(parts, n))
	size, rem := n/parts, n%parts
	out := make([]bounds, parts)
	lo := 0
	for i := range out {
		hi := lo + size
		if i < rem {
			hi++
		}
		out[i] = bounds{lo: lo, hi: hi}
		lo = hi
	}
	return out
}

// forEachPartition runs fn once per partition in parallel. The first error
// cancels the others.
func forEachPartition(ctx context.Context, parts []bounds, fn func(ctx context.Context, p int, b bounds) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for p, b := range parts {
		g.Go(func() error {
			return fn(ctx, p, b)
		})
	}
	return g.Wait()
}
