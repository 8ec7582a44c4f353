package store_test

import (
	"time"

	emodels "riskwatch/internal/eventstore/models"
	"riskwatch/internal/risk"
	"riskwatch/internal/temporal"
	"riskwatch/internal/views/models"
	"riskwatch/internal/watchlist"
	id "riskwatch/pkg/domain"
)

// sampleViewSet builds a two-customer cycle: CUST_00001 moved twice and is
// sanctioned, CUST_00002 has one address and no risk.
func sampleViewSet() *models.ViewSet {
	base := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	state := "Lisboa"
	history := temporal.ProjectCustomer([]emodels.AddressEvent{
		{Seq: 1, CustomerID: "CUST_00001", Street: "Rua A", City: "Lisbon", State: &state, Zipcode: "1100", Country: "Portugal", InsertedAt: base},
		{Seq: 2, CustomerID: "CUST_00001", Street: "Rua B", City: "Lisbon", Zipcode: "1100", Country: "Portugal", InsertedAt: base.AddDate(0, 1, 0)},
	})
	history = append(history, temporal.ProjectCustomer([]emodels.AddressEvent{
		{Seq: 3, CustomerID: "CUST_00002", Street: "Main St", City: "Porto", Zipcode: "4000", Country: "Portugal", InsertedAt: base},
	})...)

	var current []models.AddressRow
	for _, row := range history {
		if row.IsCurrent {
			current = append(current, row)
		}
	}

	eid := id.EntityID("SAN_001")
	acc := 100.0
	sanctioned := watchlist.MatchResult{CustomerID: "CUST_00001", Kind: emodels.WatchlistSanctions, Type: watchlist.MatchExact, EntityID: &eid, Accuracy: &acc, MatchedName: "JANE SMITH"}
	noPEP := watchlist.MatchResult{Kind: emodels.WatchlistPEP, Type: watchlist.MatchNone}
	cycleID := id.NewCycleID()

	profiles := []models.RiskProfile{
		{
			Profile: risk.Aggregate(risk.Input{
				CustomerID: "CUST_00001",
				PEP:        watchlist.Pair{Exact: noPEP, Fuzzy: noPEP},
				Sanctions:  watchlist.Pair{Exact: sanctioned, Fuzzy: watchlist.MatchResult{Kind: emodels.WatchlistSanctions, Type: watchlist.MatchNone}},
			}),
			FirstName:      "Jane",
			FamilyName:     "Smith",
			DateOfBirth:    id.MustDate("1980-02-02"),
			OnboardingDate: id.MustDate("2020-01-01"),
			PEPMatch:       noPEP,
			SanctionsMatch: sanctioned,
			Matches:        []watchlist.MatchResult{sanctioned},
			CycleID:        cycleID,
		},
		{
			Profile:        risk.Aggregate(risk.Input{CustomerID: "CUST_00002", PEP: watchlist.Pair{Exact: noPEP, Fuzzy: noPEP}}),
			FirstName:      "Rui",
			FamilyName:     "Costa",
			DateOfBirth:    id.MustDate("1991-09-09"),
			OnboardingDate: id.MustDate("2022-05-05"),
			PEPMatch:       noPEP,
			CycleID:        cycleID,
		},
	}

	return &models.ViewSet{
		Cycle: models.CycleReport{
			CycleID:          cycleID,
			StartedAt:        base,
			FinishedAt:       base.Add(3 * time.Second),
			WatchlistVersion: 4,
			Customers:        2,
			AddressEvents:    3,
			HistoryRows:      len(history),
			SanctionsMatches: 1,
			ReviewRequired:   1,
			Ratings:          map[risk.Rating]int{risk.RatingCritical: 1, risk.RatingNoRisk: 1},
		},
		Current:  current,
		History:  history,
		Profiles: profiles,
	}
}
