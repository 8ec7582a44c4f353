// Package risk folds a customer's behavioural flag and watchlist results
// into one rating, score and set of review flags.
package risk

import (
	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/watchlist"
	id "riskwatch/pkg/domain"
)

// Rating is the overall ordinal risk of a customer.
type Rating string

const (
	RatingNoRisk   Rating = "NO_RISK"
	RatingLow      Rating = "LOW"
	RatingMedium   Rating = "MEDIUM"
	RatingHigh     Rating = "HIGH"
	RatingCritical Rating = "CRITICAL"
)

var ratingRank = map[Rating]int{
	RatingNoRisk:   0,
	RatingLow:      1,
	RatingMedium:   2,
	RatingHigh:     3,
	RatingCritical: 4,
}

// Rank orders ratings; unknown values rank below NO_RISK.
func (r Rating) Rank() int {
	if rank, ok := ratingRank[r]; ok {
		return rank
	}
	return -1
}

// IsValid reports whether r is a known rating.
func (r Rating) IsValid() bool {
	_, ok := ratingRank[r]
	return ok
}

// ParseRating accepts a rating name in any case.
func ParseRating(s string) (Rating, bool) {
	r := Rating(upper(s))
	return r, r.IsValid()
}

// Ratings lists every rating from lowest to highest.
func Ratings() []Rating {
	return []Rating{RatingNoRisk, RatingLow, RatingMedium, RatingHigh, RatingCritical}
}

// Overall per-list risk values when nothing matched.
const (
	NoPEPRisk       = "NO_PEP_RISK"
	NoSanctionsRisk = "NO_SANCTIONS_RISK"
)

// Reason names the rule that decided the rating.
type Reason string

const (
	ReasonSanctioned         Reason = "sanctions_match"
	ReasonPEPCriticalAnomaly Reason = "pep_critical_with_anomaly"
	ReasonPEPHighAnomaly     Reason = "pep_high_with_anomaly"
	ReasonPEPCritical        Reason = "pep_critical"
	ReasonPEPMediumAnomaly   Reason = "pep_medium_with_anomaly"
	ReasonPEPHigh            Reason = "pep_high"
	ReasonPEPLowAnomaly      Reason = "pep_low_with_anomaly"
	ReasonPEPMedium          Reason = "pep_medium"
	ReasonAnomaly            Reason = "anomaly"
	ReasonPEPLow             Reason = "pep_low"
	ReasonNoRiskSignal       Reason = "no_risk_signal"
)

// Input is everything the aggregator needs for one customer.
type Input struct {
	CustomerID id.CustomerID
	HasAnomaly bool
	PEP        watchlist.Pair
	Sanctions  watchlist.Pair
}

// Profile is the aggregated risk of one customer.
type Profile struct {
	CustomerID              id.CustomerID `json:"customer_id"`
	OverallPEPRisk          string        `json:"overall_pep_risk"`
	OverallSanctionsRisk    string        `json:"overall_sanctions_risk"`
	OverallRating           Rating        `json:"overall_rating"`
	OverallScore            int           `json:"overall_score"`
	Reason                  Reason        `json:"reason"`
	RequiresPEPReview       bool          `json:"requires_pep_review"`
	RequiresSanctionsReview bool          `json:"requires_sanctions_review"`
	HighRiskFlag            bool          `json:"high_risk_flag"`
}

// RequiresReview reports whether any review flag is raised.
func (p Profile) RequiresReview() bool {
	return p.RequiresPEPReview || p.RequiresSanctionsReview || p.HighRiskFlag
}

// pepLevel is the highest risk level among the matched PEP entities, or ""
// when nothing matched. A match with an unrecognised level counts as LOW.
func pepLevel(pair watchlist.Pair) models.RiskLevel {
	var level models.RiskLevel
	for _, r := range pair.Results() {
		l := r.RiskLevel
		if !l.IsValid() {
			l = models.RiskLevelLow
		}
		if l.Rank() > level.Rank() {
			level = l
		}
	}
	return level
}
