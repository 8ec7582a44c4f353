package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	vmodels "riskwatch/internal/views/models"
	id "riskwatch/pkg/domain"
	"riskwatch/pkg/platform/sentinel"
)

// PostgresStore persists views with pgx. Replace deletes and re-copies
// every table inside one transaction, so readers see either the previous
// cycle or the new one.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the view tables if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create view schema: %w", err)
	}
	return nil
}

var (
	currentColumns = []string{"customer_id", "street", "city", "state", "zipcode", "country", "valid_from", "source_seq", "inserted_at"}
	historyColumns = []string{"customer_id", "source_seq", "street", "city", "state", "zipcode", "country", "valid_from", "valid_to", "is_current", "inserted_at"}
	profileColumns = []string{"customer_id", "overall_rating", "overall_score", "requires_review", "profile"}
)

func (s *PostgresStore) Replace(ctx context.Context, set *vmodels.ViewSet) error {
	profiles := make([][]any, len(set.Profiles))
	for i, p := range set.Profiles {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile %s: %w", p.CustomerID, err)
		}
		profiles[i] = []any{string(p.CustomerID), string(p.OverallRating), p.OverallScore, p.RequiresReview(), raw}
	}
	report, err := json.Marshal(set.Cycle)
	if err != nil {
		return fmt.Errorf("encode cycle report: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin view replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM view_current_address`); err != nil {
		return fmt.Errorf("clear current address view: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM view_address_history`); err != nil {
		return fmt.Errorf("clear address history view: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM view_risk_profiles`); err != nil {
		return fmt.Errorf("clear risk profile view: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"view_current_address"}, currentColumns,
		pgx.CopyFromSlice(len(set.Current), func(i int) ([]any, error) {
			r := set.Current[i]
			return []any{string(r.CustomerID), r.Address.Street, r.Address.City, r.Address.State, r.Address.Zipcode, r.Address.Country,
				r.ValidFrom.Time(), r.SourceSeq, r.InsertedAt}, nil
		})); err != nil {
		return fmt.Errorf("copy current address view: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"view_address_history"}, historyColumns,
		pgx.CopyFromSlice(len(set.History), func(i int) ([]any, error) {
			r := set.History[i]
			return []any{string(r.CustomerID), r.SourceSeq, r.Address.Street, r.Address.City, r.Address.State, r.Address.Zipcode, r.Address.Country,
				r.ValidFrom.Time(), dateOrNil(r.ValidTo), r.IsCurrent, r.InsertedAt}, nil
		})); err != nil {
		return fmt.Errorf("copy address history view: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"view_risk_profiles"}, profileColumns, pgx.CopyFromRows(profiles)); err != nil {
		return fmt.Errorf("copy risk profile view: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO view_cycles (cycle_id, finished_at, report) VALUES ($1, $2, $3)
		ON CONFLICT (cycle_id) DO UPDATE SET finished_at = EXCLUDED.finished_at, report = EXCLUDED.report`,
		set.Cycle.CycleID.String(), set.Cycle.FinishedAt, report); err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit view replace: %w", err)
	}
	return nil
}

func (s *PostgresStore) CurrentAddress(ctx context.Context, cid id.CustomerID) (vmodels.AddressRow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT customer_id, street, city, state, zipcode, country, valid_from, source_seq, inserted_at
		FROM view_current_address WHERE customer_id = $1`, string(cid))

	var (
		r         vmodels.AddressRow
		customer  string
		validFrom time.Time
	)
	err := row.Scan(&customer, &r.Address.Street, &r.Address.City, &r.Address.State, &r.Address.Zipcode, &r.Address.Country,
		&validFrom, &r.SourceSeq, &r.InsertedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return vmodels.AddressRow{}, sentinel.ErrNotFound
	}
	if err != nil {
		return vmodels.AddressRow{}, fmt.Errorf("read current address: %w", err)
	}
	r.CustomerID = id.CustomerID(customer)
	r.ValidFrom = id.DateOf(validFrom)
	r.IsCurrent = true
	r.InsertedAt = r.InsertedAt.UTC()
	return r, nil
}

func (s *PostgresStore) AddressHistory(ctx context.Context, cid id.CustomerID) ([]vmodels.AddressRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id, source_seq, street, city, state, zipcode, country, valid_from, valid_to, is_current, inserted_at
		FROM view_address_history WHERE customer_id = $1
		ORDER BY valid_from, inserted_at, source_seq`, string(cid))
	if err != nil {
		return nil, fmt.Errorf("read address history: %w", err)
	}
	defer rows.Close()

	var out []vmodels.AddressRow
	for rows.Next() {
		var (
			r         vmodels.AddressRow
			customer  string
			validFrom time.Time
			validTo   *time.Time
		)
		if err := rows.Scan(&customer, &r.SourceSeq, &r.Address.Street, &r.Address.City, &r.Address.State, &r.Address.Zipcode, &r.Address.Country,
			&validFrom, &validTo, &r.IsCurrent, &r.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan address history: %w", err)
		}
		r.CustomerID = id.CustomerID(customer)
		r.ValidFrom = id.DateOf(validFrom)
		if validTo != nil {
			d := id.DateOf(*validTo)
			r.ValidTo = &d
		}
		r.InsertedAt = r.InsertedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address history: %w", err)
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}

func (s *PostgresStore) RiskProfile(ctx context.Context, cid id.CustomerID) (vmodels.RiskProfile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT profile FROM view_risk_profiles WHERE customer_id = $1`, string(cid)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return vmodels.RiskProfile{}, sentinel.ErrNotFound
	}
	if err != nil {
		return vmodels.RiskProfile{}, fmt.Errorf("read risk profile: %w", err)
	}
	var p vmodels.RiskProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return vmodels.RiskProfile{}, fmt.Errorf("decode risk profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListRiskProfiles(ctx context.Context, filter vmodels.Filter) ([]vmodels.RiskProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT profile FROM view_risk_profiles
		WHERE ($1 = '' OR overall_rating = $1)
		  AND (NOT $2 OR requires_review)
		ORDER BY customer_id
		OFFSET $3 LIMIT NULLIF($4, 0)`,
		string(filter.Rating), filter.ReviewOnly, filter.Offset, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list risk profiles: %w", err)
	}
	defer rows.Close()

	out := make([]vmodels.RiskProfile, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan risk profile: %w", err)
		}
		var p vmodels.RiskProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode risk profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk profiles: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) LatestCycle(ctx context.Context) (vmodels.CycleReport, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM view_cycles ORDER BY finished_at DESC LIMIT 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return vmodels.CycleReport{}, sentinel.ErrNotFound
	}
	if err != nil {
		return vmodels.CycleReport{}, fmt.Errorf("read latest cycle: %w", err)
	}
	var report vmodels.CycleReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return vmodels.CycleReport{}, fmt.Errorf("decode cycle report: %w", err)
	}
	return report, nil
}

func dateOrNil(d *id.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}
