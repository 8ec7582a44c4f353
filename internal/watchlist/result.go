// Package watchlist screens customers against immutable snapshots of the
// PEP and sanctions lists.
package watchlist

import (
	"riskwatch/internal/eventstore/models"
	id "riskwatch/pkg/domain"
)

// MatchType is how a customer matched an entity.
type MatchType string

const (
	MatchExact MatchType = "EXACT"
	MatchFuzzy MatchType = "FUZZY"
	MatchNone  MatchType = "NONE"
)

// MatchResult is one customer-to-watchlist outcome. EntityID and Accuracy
// are nil when Type is MatchNone.
type MatchResult struct {
	CustomerID   id.CustomerID        `json:"customer_id"`
	Kind         models.WatchlistKind `json:"watchlist_kind"`
	Type         MatchType            `json:"match_type"`
	EntityID     *id.EntityID         `json:"matched_entity_id"`
	Accuracy     *float64             `json:"accuracy_percent"`
	MatchedName  string               `json:"matched_name,omitempty"`
	EditDistance int                  `json:"edit_distance,omitempty"`

	// PEP only.
	RiskLevel models.RiskLevel   `json:"risk_level,omitempty"`
	Category  models.PEPCategory `json:"category,omitempty"`
}

// Matched reports whether the result points at an entity.
func (r MatchResult) Matched() bool {
	return r.Type != MatchNone && r.EntityID != nil
}

func noMatch(cid id.CustomerID, kind models.WatchlistKind) MatchResult {
	return MatchResult{CustomerID: cid, Kind: kind, Type: MatchNone}
}

// Pair holds the exact and the best fuzzy result for one watchlist. Either
// side may be MatchNone; both can be set at once.
type Pair struct {
	Exact MatchResult `json:"exact"`
	Fuzzy MatchResult `json:"fuzzy"`
}

// Any reports whether either side matched.
func (p Pair) Any() bool {
	return p.Exact.Matched() || p.Fuzzy.Matched()
}

// Best prefers the exact result, then the fuzzy one.
func (p Pair) Best() MatchResult {
	if p.Exact.Matched() {
		return p.Exact
	}
	return p.Fuzzy
}

// Results returns the matched sides.
func (p Pair) Results() []MatchResult {
	out := make([]MatchResult, 0, 2)
	if p.Exact.Matched() {
		out = append(out, p.Exact)
	}
	if p.Fuzzy.Matched() {
		out = append(out, p.Fuzzy)
	}
	return out
}

// Screening is a customer's outcome against both lists.
type Screening struct {
	CustomerID id.CustomerID `json:"customer_id"`
	PEP        Pair          `json:"pep"`
	Sanctions  Pair          `json:"sanctions"`
}
