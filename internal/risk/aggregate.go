package risk

import (
	"strings"

	"riskwatch/internal/eventstore/models"
)

// Scores per deciding rule. Listed in rule order; each is strictly lower
// than the one before, so rating order and score order never disagree.
var scores = map[Reason]int{
	ReasonSanctioned:         100,
	ReasonPEPCriticalAnomaly: 95,
	ReasonPEPHighAnomaly:     85,
	ReasonPEPCritical:        80,
	ReasonPEPMediumAnomaly:   65,
	ReasonPEPHigh:            60,
	ReasonPEPLowAnomaly:      45,
	ReasonPEPMedium:          40,
	ReasonAnomaly:            35,
	ReasonPEPLow:             30,
	ReasonNoRiskSignal:       10,
}

// Aggregate computes the risk profile. Pure: the result depends only on
// the input.
func Aggregate(in Input) Profile {
	level := pepLevel(in.PEP)
	sanctioned := in.Sanctions.Any()

	rating, reason := evaluate(level, sanctioned, in.HasAnomaly)

	p := Profile{
		CustomerID:              in.CustomerID,
		OverallPEPRisk:          NoPEPRisk,
		OverallSanctionsRisk:    NoSanctionsRisk,
		OverallRating:           rating,
		OverallScore:            scores[reason],
		Reason:                  reason,
		RequiresPEPReview:       in.PEP.Any(),
		RequiresSanctionsReview: sanctioned,
		HighRiskFlag:            in.HasAnomaly && (in.PEP.Any() || sanctioned),
	}
	if level != "" {
		p.OverallPEPRisk = string(level)
	}
	if sanctioned {
		p.OverallSanctionsRisk = string(models.RiskLevelCritical)
	}
	return p
}

// evaluate applies the rating rules, highest first:
//  1. Any sanctions match
//  2. CRITICAL PEP with anomaly
//  3. HIGH PEP with anomaly, or CRITICAL PEP alone
//  4. MEDIUM PEP with anomaly, or HIGH PEP alone
//  5. LOW PEP with anomaly, MEDIUM PEP alone, anomaly alone, LOW PEP alone
//  6. Nothing
func evaluate(level models.RiskLevel, sanctioned, anomaly bool) (Rating, Reason) {
	// Rule 1: sanctions carry no grading, any hit is maximal
	if sanctioned {
		return RatingCritical, ReasonSanctioned
	}

	switch {
	// Rule 2
	case level == models.RiskLevelCritical && anomaly:
		return RatingCritical, ReasonPEPCriticalAnomaly
	// Rule 3
	case level == models.RiskLevelHigh && anomaly:
		return RatingHigh, ReasonPEPHighAnomaly
	case level == models.RiskLevelCritical:
		return RatingHigh, ReasonPEPCritical
	// Rule 4
	case level == models.RiskLevelMedium && anomaly:
		return RatingMedium, ReasonPEPMediumAnomaly
	case level == models.RiskLevelHigh:
		return RatingMedium, ReasonPEPHigh
	// Rule 5
	case level == models.RiskLevelLow && anomaly:
		return RatingLow, ReasonPEPLowAnomaly
	case level == models.RiskLevelMedium:
		return RatingLow, ReasonPEPMedium
	case anomaly:
		return RatingLow, ReasonAnomaly
	case level == models.RiskLevelLow:
		return RatingLow, ReasonPEPLow
	}

	// Rule 6
	return RatingNoRisk, ReasonNoRiskSignal
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
