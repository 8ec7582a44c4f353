package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"riskwatch/internal/eventstore/models"
	id "riskwatch/pkg/domain"
	"riskwatch/pkg/platform/sentinel"
	txcontext "riskwatch/pkg/platform/tx"
)

const pqUniqueViolation = "23505"

// PostgresStore persists events in PostgreSQL. Customers and address events
// are insert-only; the watchlist tables are replaced wholesale together with
// a version bump.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the event store tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure event store schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendCustomers(ctx context.Context, records []models.CustomerRecord) error {
	if len(records) == 0 {
		return nil
	}
	keys := make([]string, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		keys = append(keys, r.CustomerID.String())
	}

	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		existing, err := lockCustomers(ctx, tx, keys)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO customers (customer_id, first_name, family_name, date_of_birth, onboarding_date, reporting_currency, has_anomaly)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (customer_id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("prepare customer insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if prior, ok := existing[r.CustomerID]; ok {
				if !sameCustomer(prior, r) {
					return fmt.Errorf("customer %s: %w", r.CustomerID, sentinel.ErrConflict)
				}
				continue
			}
			existing[r.CustomerID] = r
			_, err := stmt.ExecContext(ctx,
				r.CustomerID.String(),
				r.FirstName,
				r.FamilyName,
				nullDate(r.DateOfBirth),
				nullDate(r.OnboardingDate),
				r.ReportingCurrency,
				r.HasAnomaly,
			)
			if err != nil {
				return mapPQError(fmt.Sprintf("insert customer %s", r.CustomerID), err)
			}
		}
		return nil
	})
}

func lockCustomers(ctx context.Context, tx *sql.Tx, keys []string) (map[id.CustomerID]models.CustomerRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT customer_id, first_name, family_name, date_of_birth, onboarding_date, reporting_currency, has_anomaly
		FROM customers
		WHERE customer_id = ANY($1)
		FOR UPDATE
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("lock customers: %w", err)
	}
	defer rows.Close()

	existing := make(map[id.CustomerID]models.CustomerRecord, len(keys))
	for rows.Next() {
		r, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		existing[r.CustomerID] = r
	}
	return existing, rows.Err()
}

func (s *PostgresStore) AppendAddressEvents(ctx context.Context, events []models.AddressEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return 0, err
		}
	}

	appended := 0
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO address_events (customer_id, street, city, state, zipcode, country, inserted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("prepare address event insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			res, err := stmt.ExecContext(ctx,
				e.CustomerID.String(),
				e.Street,
				e.City,
				nullString(e.State),
				e.Zipcode,
				e.Country,
				e.InsertedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert address event for %s: %w", e.CustomerID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("address event rows affected: %w", err)
			}
			appended += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return appended, nil
}

func (s *PostgresStore) ReplacePEPEntities(ctx context.Context, entities []models.PEPEntity) (int64, error) {
	if err := validateUniqueEntities(entities, func(e models.PEPEntity) (id.EntityID, error) {
		return e.EntityID, e.Validate()
	}); err != nil {
		return 0, err
	}

	var version int64
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := lockWatchlistVersion(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pep_entities`); err != nil {
			return fmt.Errorf("clear pep entities: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pep_entities (
				entity_id, full_name, first_name, last_name, category, risk_level, status,
				date_of_birth, nationality, position_title, organization, country,
				start_date, end_date, reference_link, source
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`)
		if err != nil {
			return fmt.Errorf("prepare pep insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entities {
			_, err := stmt.ExecContext(ctx,
				e.EntityID.String(), e.FullName, e.FirstName, e.LastName,
				string(e.Category), string(e.RiskLevel), string(e.Status),
				nullDate(e.DateOfBirth), e.Nationality, e.PositionTitle, e.Organization, e.Country,
				nullDate(e.StartDate), nullDate(e.EndDate), e.ReferenceLink, e.Source,
			)
			if err != nil {
				return mapPQError(fmt.Sprintf("insert pep entity %s", e.EntityID), err)
			}
		}

		version, err = bumpWatchlistVersion(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *PostgresStore) ReplaceSanctionsEntities(ctx context.Context, entities []models.SanctionsEntity) (int64, error) {
	if err := validateUniqueEntities(entities, func(e models.SanctionsEntity) (id.EntityID, error) {
		return e.EntityID, e.Validate()
	}); err != nil {
		return 0, err
	}

	var version int64
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := lockWatchlistVersion(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sanctions_entities`); err != nil {
			return fmt.Errorf("clear sanctions entities: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sanctions_entities (entity_id, entity_name, entity_type, country)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return fmt.Errorf("prepare sanctions insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entities {
			if _, err := stmt.ExecContext(ctx, e.EntityID.String(), e.EntityName, e.EntityType, e.Country); err != nil {
				return mapPQError(fmt.Sprintf("insert sanctions entity %s", e.EntityID), err)
			}
		}

		version, err = bumpWatchlistVersion(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Load reads every table inside one repeatable-read transaction so the
// cycle sees a single point in time.
func (s *PostgresStore) Load(ctx context.Context) (*models.Batch, error) {
	batch := &models.Batch{}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := s.inTx(ctx, opts, func(tx *sql.Tx) error {
		var err error
		if batch.Customers, err = loadCustomers(ctx, tx); err != nil {
			return err
		}
		if batch.AddressEvents, err = loadAddressEvents(ctx, tx); err != nil {
			return err
		}
		if batch.PEPEntities, err = loadPEPEntities(ctx, tx); err != nil {
			return err
		}
		if batch.SanctionsEntities, err = loadSanctionsEntities(ctx, tx); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT version FROM watchlist_version WHERE id = 1`).Scan(&batch.WatchlistVersion)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func loadCustomers(ctx context.Context, tx *sql.Tx) ([]models.CustomerRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT customer_id, first_name, family_name, date_of_birth, onboarding_date, reporting_currency, has_anomaly
		FROM customers
		ORDER BY customer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	defer rows.Close()

	var out []models.CustomerRecord
	for rows.Next() {
		r, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadAddressEvents(ctx context.Context, tx *sql.Tx) ([]models.AddressEvent, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT seq, customer_id, street, city, state, zipcode, country, inserted_at
		FROM address_events
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("load address events: %w", err)
	}
	defer rows.Close()

	var out []models.AddressEvent
	for rows.Next() {
		var (
			e     models.AddressEvent
			cid   string
			state sql.NullString
		)
		if err := rows.Scan(&e.Seq, &cid, &e.Street, &e.City, &state, &e.Zipcode, &e.Country, &e.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan address event: %w", err)
		}
		e.CustomerID = id.CustomerID(cid)
		e.InsertedAt = e.InsertedAt.UTC()
		if state.Valid {
			v := state.String
			e.State = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func loadPEPEntities(ctx context.Context, tx *sql.Tx) ([]models.PEPEntity, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT entity_id, full_name, first_name, last_name, category, risk_level, status,
		       date_of_birth, nationality, position_title, organization, country,
		       start_date, end_date, reference_link, source
		FROM pep_entities
		ORDER BY entity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load pep entities: %w", err)
	}
	defer rows.Close()

	var out []models.PEPEntity
	for rows.Next() {
		var (
			e                     models.PEPEntity
			eid                   string
			category, level, stat string
			dob, start, end       sql.NullTime
		)
		if err := rows.Scan(&eid, &e.FullName, &e.FirstName, &e.LastName, &category, &level, &stat,
			&dob, &e.Nationality, &e.PositionTitle, &e.Organization, &e.Country,
			&start, &end, &e.ReferenceLink, &e.Source); err != nil {
			return nil, fmt.Errorf("scan pep entity: %w", err)
		}
		e.EntityID = id.EntityID(eid)
		e.Category = models.PEPCategory(category)
		e.RiskLevel = models.RiskLevel(level)
		e.Status = models.PEPStatus(stat)
		e.DateOfBirth = dateFromNull(dob)
		e.StartDate = dateFromNull(start)
		e.EndDate = dateFromNull(end)
		out = append(out, e)
	}
	return out, rows.Err()
}

func loadSanctionsEntities(ctx context.Context, tx *sql.Tx) ([]models.SanctionsEntity, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT entity_id, entity_name, entity_type, country
		FROM sanctions_entities
		ORDER BY entity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load sanctions entities: %w", err)
	}
	defer rows.Close()

	var out []models.SanctionsEntity
	for rows.Next() {
		var (
			e   models.SanctionsEntity
			eid string
		)
		if err := rows.Scan(&eid, &e.EntityName, &e.EntityType, &e.Country); err != nil {
			return nil, fmt.Errorf("scan sanctions entity: %w", err)
		}
		e.EntityID = id.EntityID(eid)
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (models.CustomerRecord, error) {
	var (
		r          models.CustomerRecord
		cid        string
		dob, onbrd sql.NullTime
	)
	if err := row.Scan(&cid, &r.FirstName, &r.FamilyName, &dob, &onbrd, &r.ReportingCurrency, &r.HasAnomaly); err != nil {
		return models.CustomerRecord{}, fmt.Errorf("scan customer: %w", err)
	}
	r.CustomerID = id.CustomerID(cid)
	r.DateOfBirth = dateFromNull(dob)
	r.OnboardingDate = dateFromNull(onbrd)
	return r, nil
}

func lockWatchlistVersion(ctx context.Context, tx *sql.Tx) error {
	var current int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM watchlist_version WHERE id = 1 FOR UPDATE`).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("watchlist version row missing: %w", sentinel.ErrInvalidState)
	}
	if err != nil {
		return fmt.Errorf("lock watchlist version: %w", err)
	}
	return nil
}

func bumpWatchlistVersion(ctx context.Context, tx *sql.Tx) (int64, error) {
	var version int64
	err := tx.QueryRowContext(ctx, `UPDATE watchlist_version SET version = version + 1 WHERE id = 1 RETURNING version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("bump watchlist version: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	return txcontext.Run(ctx, s.db, opts, func(_ context.Context, tx *sql.Tx) error {
		return fn(tx)
	})
}

func mapPQError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullDate(d id.Date) sql.NullTime {
	if d.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time(), Valid: true}
}

func dateFromNull(t sql.NullTime) id.Date {
	if !t.Valid {
		return id.Date{}
	}
	return id.DateOf(t.Time)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
