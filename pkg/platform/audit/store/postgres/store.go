package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "riskwatch/pkg/platform/audit"
	txcontext "riskwatch/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the
// outbox relay.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema creates the outbox table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure audit outbox schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append writes the events to the outbox in one transaction. When the
// context already carries a transaction the events join it instead.
func (s *Store) Append(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	return txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return s.insert(ctx, tx, events)
	})
}

func (s *Store) insert(ctx context.Context, exec dbExecutor, events []audit.Event) error {
	const query = `
		INSERT INTO audit_outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	createdAt := s.now()
	for _, event := range events {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		// Always derive category from action; eventCategories is the source of truth.
		event.Category = audit.AuditEvent(event.Action).Category()

		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}

		aggregateType, aggregateID := "cycle", event.CycleID.String()
		switch {
		case event.Subject == "":
		case event.Category == audit.CategoryOperations:
			aggregateType, aggregateID = "watchlist", event.Subject
		default:
			aggregateType, aggregateID = "customer", event.Subject
		}

		if _, err := exec.ExecContext(ctx, query,
			event.ID,
			aggregateType,
			aggregateID,
			event.Action,
			payload,
			createdAt,
		); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

// Entry is one pending outbox row.
type Entry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// Claim locks up to limit unpublished entries, hands them to publish, and
// marks them published if publish succeeds. Concurrent relays skip rows
// another relay holds. Returns the number of entries published.
func (s *Store) Claim(ctx context.Context, limit int, publish func(context.Context, []Entry) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("query pending outbox: %w", err)
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := publish(ctx, entries); err != nil {
		return 0, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID.String()
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		s.now(), pq.Array(ids),
	); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit claim tx: %w", err)
	}
	return len(entries), nil
}

// Pending counts unpublished entries.
func (s *Store) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM audit_outbox WHERE published_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox: %w", err)
	}
	return n, nil
}
