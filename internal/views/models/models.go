// Package models defines the read-side views replaced wholesale at the end
// of every screening cycle.
package models

import (
	"time"

	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/risk"
	"riskwatch/internal/temporal"
	"riskwatch/internal/watchlist"
	id "riskwatch/pkg/domain"
)

// AddressRow is one row of the CurrentAddress or AddressHistory view.
type AddressRow = temporal.Interval

// RiskProfile is one row of the CustomerRiskProfile view: the aggregated
// risk plus the facts and matches it was derived from.
type RiskProfile struct {
	risk.Profile

	FirstName         string          `json:"first_name"`
	FamilyName        string          `json:"family_name"`
	DateOfBirth       id.Date         `json:"date_of_birth"`
	OnboardingDate    id.Date         `json:"onboarding_date"`
	ReportingCurrency string          `json:"reporting_currency,omitempty"`
	HasAnomaly        bool            `json:"has_anomaly"`
	CurrentAddress    *models.Address `json:"current_address"`

	PEPMatch       watchlist.MatchResult `json:"pep_match"`
	SanctionsMatch watchlist.MatchResult `json:"sanctions_match"`
	// Matches holds every matched result, exact and fuzzy, on both lists.
	Matches []watchlist.MatchResult `json:"matches"`

	CycleID id.CycleID `json:"cycle_id"`
}

// CycleReport summarises one completed cycle.
type CycleReport struct {
	CycleID          id.CycleID          `json:"cycle_id"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	WatchlistVersion int64               `json:"watchlist_version"`
	Customers        int                 `json:"customers"`
	AddressEvents    int                 `json:"address_events"`
	HistoryRows      int                 `json:"history_rows"`
	PEPMatches       int                 `json:"pep_matches"`
	SanctionsMatches int                 `json:"sanctions_matches"`
	ReviewRequired   int                 `json:"review_required"`
	Ratings          map[risk.Rating]int `json:"ratings"`
}

// Duration is how long the cycle took.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ViewSet is the complete output of a cycle. Rows are ordered by customer
// and, for history, by ValidFrom.
type ViewSet struct {
	Cycle    CycleReport
	Current  []AddressRow
	History  []AddressRow
	Profiles []RiskProfile
}

// Filter narrows ListRiskProfiles.
type Filter struct {
	// Rating keeps only profiles with this overall rating when set.
	Rating risk.Rating
	// ReviewOnly keeps profiles with at least one review flag.
	ReviewOnly bool
	Limit      int
	Offset     int
}

// Matches reports whether p passes the filter's predicates.
func (f Filter) Matches(p RiskProfile) bool {
	if f.Rating != "" && p.OverallRating != f.Rating {
		return false
	}
	if f.ReviewOnly && !p.RequiresReview() {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already filtered, ordered slice.
func Page[T any](rows []T, f Filter) []T {
	if f.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[f.Offset:]
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}
	return rows
}
