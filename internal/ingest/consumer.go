// Package ingest consumes the ingestion feed from Kafka and writes it to the
// event store: customer records and address events are appended as they
// arrive, watchlists are replaced once a complete snapshot has arrived.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/ingest/metrics"
	id "riskwatch/pkg/domain"
	dErrors "riskwatch/pkg/domain-errors"
	audit "riskwatch/pkg/platform/audit"
	"riskwatch/pkg/platform/sentinel"
)

const (
	TopicCustomers         = "riskwatch.customers"
	TopicAddressEvents     = "riskwatch.address-events"
	TopicPEPEntities       = "riskwatch.pep-entities"
	TopicSanctionsEntities = "riskwatch.sanctions-entities"
)

// FactTopics carry append-only facts and may be spread over many
// partitions.
func FactTopics() []string {
	return []string{TopicCustomers, TopicAddressEvents}
}

// WatchlistTopics carry full snapshots. They need a single partition so
// snapshots are applied in the order they were produced.
func WatchlistTopics() []string {
	return []string{TopicPEPEntities, TopicSanctionsEntities}
}

// Topics lists every topic the consumer subscribes to.
func Topics() []string {
	return append(FactTopics(), WatchlistTopics()...)
}

// Client is the part of *kgo.Client the consumer needs. The client must be
// created with auto-commit disabled.
type Client interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// Store is the write side of the event store.
type Store interface {
	AppendCustomers(ctx context.Context, records []models.CustomerRecord) error
	AppendAddressEvents(ctx context.Context, events []models.AddressEvent) (int, error)
	ReplacePEPEntities(ctx context.Context, entities []models.PEPEntity) (int64, error)
	ReplaceSanctionsEntities(ctx context.Context, entities []models.SanctionsEntity) (int64, error)
}

// Consumer moves records from Kafka into the event store. Offsets are
// committed only after the store has accepted the records, so delivery is
// at-least-once; the store drops exact redeliveries.
type Consumer struct {
	client  Client
	store   Store
	auditor audit.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	retryBase time.Duration
	retryMax  time.Duration

	pep       *assembler[models.PEPEntity]
	sanctions *assembler[models.SanctionsEntity]
}

// Option configures the Consumer.
type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

// WithAuditStore records an operations event for every applied watchlist
// snapshot.
func WithAuditStore(s audit.Store) Option {
	return func(c *Consumer) { c.auditor = s }
}

// WithRetry sets the backoff bounds for transient store failures.
func WithRetry(base, ceiling time.Duration) Option {
	return func(c *Consumer) {
		c.retryBase = base
		c.retryMax = ceiling
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

func New(client Client, store Store, opts ...Option) *Consumer {
	c := &Consumer{
		client:    client,
		store:     store,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		retryBase: 200 * time.Millisecond,
		retryMax:  30 * time.Second,
		pep:       newAssembler(func(e models.PEPEntity) id.EntityID { return e.EntityID }),
		sanctions: newAssembler(func(e models.SanctionsEntity) id.EntityID { return e.EntityID }),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "ingest consumer started", "topics", Topics())
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch failed", "topic", topic, "partition", partition, "error", err)
		})
		if err := c.Process(ctx, fetches.Records()); err != nil {
			return err
		}
	}
}

// Process handles one poll's worth of records and commits what the store
// accepted. It only fails when ctx ends before the store accepts a write.
func (c *Consumer) Process(ctx context.Context, records []*kgo.Record) error {
	if len(records) == 0 {
		return nil
	}

	var (
		commit    []*kgo.Record
		customers []models.CustomerRecord
		events    []models.AddressEvent
	)
	for _, r := range records {
		switch r.Topic {
		case TopicCustomers:
			var rec models.CustomerRecord
			if err := decode(r, &rec, func() error { return rec.Validate() }); err != nil {
				c.reject(ctx, r, err)
			} else {
				customers = append(customers, rec)
			}
			commit = append(commit, r)

		case TopicAddressEvents:
			var ev models.AddressEvent
			if err := decode(r, &ev, func() error { return ev.Validate() }); err != nil {
				c.reject(ctx, r, err)
			} else {
				events = append(events, ev)
			}
			commit = append(commit, r)

		case TopicPEPEntities:
			released, err := handleSnapshot(ctx, c, r, c.pep, models.WatchlistPEP, c.store.ReplacePEPEntities)
			if err != nil {
				return err
			}
			commit = append(commit, released...)

		case TopicSanctionsEntities:
			released, err := handleSnapshot(ctx, c, r, c.sanctions, models.WatchlistSanctions, c.store.ReplaceSanctionsEntities)
			if err != nil {
				return err
			}
			commit = append(commit, released...)

		default:
			c.logger.WarnContext(ctx, "no handler for topic, skipping record", "topic", r.Topic, "offset", r.Offset)
			commit = append(commit, r)
		}
	}

	if err := c.appendCustomers(ctx, customers); err != nil {
		return err
	}
	if err := c.appendAddressEvents(ctx, events); err != nil {
		return err
	}

	if len(commit) == 0 {
		return nil
	}
	if err := c.client.CommitRecords(ctx, commit...); err != nil {
		// Uncommitted records are redelivered and dropped as duplicates.
		c.logger.ErrorContext(ctx, "offset commit failed", "records", len(commit), "error", err)
	}
	return nil
}

func (c *Consumer) appendCustomers(ctx context.Context, records []models.CustomerRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := c.retry(ctx, "append_customers", func(ctx context.Context) error {
		return c.store.AppendCustomers(ctx, records)
	})
	if err == nil {
		c.metrics.AddRecords(TopicCustomers, metrics.OutcomeAccepted, len(records))
		return nil
	}
	if !isPermanent(err) {
		return err
	}

	// One bad record rejects the whole call; retry one at a time so the
	// rest still land.
	for _, rec := range records {
		err := c.retry(ctx, "append_customers", func(ctx context.Context) error {
			return c.store.AppendCustomers(ctx, []models.CustomerRecord{rec})
		})
		switch {
		case err == nil:
			c.metrics.AddRecords(TopicCustomers, metrics.OutcomeAccepted, 1)
		case isPermanent(err):
			c.metrics.AddRecords(TopicCustomers, metrics.OutcomeRejected, 1)
			c.logger.WarnContext(ctx, "customer record rejected by store", "customer_id", rec.CustomerID, "error", err)
		default:
			return err
		}
	}
	return nil
}

func (c *Consumer) appendAddressEvents(ctx context.Context, events []models.AddressEvent) error {
	if len(events) == 0 {
		return nil
	}
	var appended int
	err := c.retry(ctx, "append_address_events", func(ctx context.Context) error {
		n, err := c.store.AppendAddressEvents(ctx, events)
		appended = n
		return err
	})
	if err != nil {
		if !isPermanent(err) {
			return err
		}
		c.metrics.AddRecords(TopicAddressEvents, metrics.OutcomeRejected, len(events))
		c.logger.WarnContext(ctx, "address events rejected by store", "events", len(events), "error", err)
		return nil
	}
	c.metrics.AddRecords(TopicAddressEvents, metrics.OutcomeAccepted, len(events))
	c.logger.DebugContext(ctx, "address events appended", "received", len(events), "appended", appended)
	return nil
}

// handleSnapshot feeds one watchlist record to its assembler and applies
// the snapshot once complete. It returns the records that may be
// committed.
func handleSnapshot[T interface{ Validate() error }](
	ctx context.Context,
	c *Consumer,
	r *kgo.Record,
	a *assembler[T],
	kind models.WatchlistKind,
	replace func(context.Context, []T) (int64, error),
) ([]*kgo.Record, error) {
	h, err := readBatchHeader(r)
	if err != nil {
		c.reject(ctx, r, err)
		return []*kgo.Record{r}, nil
	}

	var entity T
	item := &entity
	if err := decode(r, item, func() error { return entity.Validate() }); err != nil {
		c.reject(ctx, r, err)
		item = nil
	}

	p := a.add(r, h, item)
	if p.superseded != "" {
		c.metrics.IncSnapshot(string(kind), metrics.SnapshotDiscarded)
		c.logger.WarnContext(ctx, "incomplete watchlist snapshot discarded",
			"watchlist", kind, "batch_id", p.superseded, "next_batch_id", h.id)
	}
	if !p.complete {
		return p.release, nil
	}

	var version int64
	err = c.retry(ctx, "replace_"+string(kind), func(ctx context.Context) error {
		v, err := replace(ctx, p.entities)
		version = v
		return err
	})
	switch {
	case err == nil:
		c.metrics.AddRecords(r.Topic, metrics.OutcomeAccepted, len(p.entities))
		c.metrics.IncSnapshot(string(kind), metrics.SnapshotApplied)
		c.logger.InfoContext(ctx, "watchlist snapshot applied",
			"watchlist", kind, "batch_id", p.batchID, "entities", len(p.entities), "watchlist_version", version)
		c.recordRefresh(ctx, kind, p.batchID, len(p.entities), version)
	case isPermanent(err):
		c.metrics.IncSnapshot(string(kind), metrics.SnapshotRejected)
		c.logger.ErrorContext(ctx, "watchlist snapshot rejected by store",
			"watchlist", kind, "batch_id", p.batchID, "error", err)
	default:
		return nil, err
	}
	return p.release, nil
}

func (c *Consumer) recordRefresh(ctx context.Context, kind models.WatchlistKind, batchID string, entities int, version int64) {
	if c.auditor == nil {
		return
	}
	err := c.auditor.Append(ctx, audit.Event{
		ID:        uuid.New(),
		Category:  audit.CategoryOperations,
		Timestamp: c.now(),
		Subject:   string(kind),
		Action:    string(audit.EventWatchlistRefreshed),
		Decision:  fmt.Sprintf("version=%d", version),
		Reason:    fmt.Sprintf("batch_id=%s entities=%d", batchID, entities),
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "watchlist refresh audit failed", "watchlist", kind, "error", err)
	}
}

func (c *Consumer) reject(ctx context.Context, r *kgo.Record, err error) {
	c.metrics.AddRecords(r.Topic, metrics.OutcomeRejected, 1)
	c.logger.WarnContext(ctx, "malformed record skipped",
		"topic", r.Topic, "partition", r.Partition, "offset", r.Offset, "error", err)
}

// retry runs fn until it succeeds, fails permanently, or ctx ends.
func (c *Consumer) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := c.retryBase
	for {
		err := fn(ctx)
		if err == nil || isPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.IncRetry(op)
		c.logger.WarnContext(ctx, "event store write failed, retrying", "op", op, "backoff", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, c.retryMax)
	}
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, sentinel.ErrConflict) ||
		dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
		dErrors.HasCode(err, dErrors.CodeConflict)
}

func decode[T any](r *kgo.Record, into *T, validate func() error) error {
	if err := json.Unmarshal(r.Value, into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode record")
	}
	return validate()
}
