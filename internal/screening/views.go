package screening

import (
	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/risk"
	vmodels "riskwatch/internal/views/models"
	"riskwatch/internal/watchlist"
	id "riskwatch/pkg/domain"
)

// buildViews assembles the complete output of the cycle. Rows come out in
// customer order because partitions are contiguous, ordered ID ranges.
func buildViews(c *cycle) *vmodels.ViewSet {
	report := vmodels.CycleReport{
		CycleID:          c.id,
		StartedAt:        c.started,
		WatchlistVersion: c.snapshot.Version(),
		AddressEvents:    len(c.batch.AddressEvents),
		Ratings:          make(map[risk.Rating]int, len(risk.Ratings())),
	}
	for _, r := range risk.Ratings() {
		report.Ratings[r] = 0
	}

	set := &vmodels.ViewSet{
		Current:  make([]vmodels.AddressRow, 0, len(c.units)),
		History:  make([]vmodels.AddressRow, 0, len(c.batch.AddressEvents)),
		Profiles: make([]vmodels.RiskProfile, 0, len(c.batch.Customers)),
	}
	for p, b := range c.parts {
		timeline := c.timelines[p]
		for i := b.lo; i < b.hi; i++ {
			u := c.units[i]
			set.History = append(set.History, timeline.History(u.id)...)

			var address *models.Address
			if current, ok := timeline.Current(u.id); ok {
				set.Current = append(set.Current, current)
				address = &current.Address
			}
			if u.record == nil {
				continue
			}

			profile := riskProfile(c.id, *u.record, c.profiles[i], c.screenings[i], address)
			set.Profiles = append(set.Profiles, profile)

			report.Ratings[profile.OverallRating]++
			if profile.RequiresPEPReview {
				report.PEPMatches++
			}
			if profile.RequiresSanctionsReview {
				report.SanctionsMatches++
			}
			if profile.RequiresReview() {
				report.ReviewRequired++
			}
		}
	}
	report.Customers = len(set.Profiles)
	report.HistoryRows = len(set.History)
	set.Cycle = report
	return set
}

func riskProfile(
	cycleID id.CycleID,
	rec models.CustomerRecord,
	p risk.Profile,
	s watchlist.Screening,
	address *models.Address,
) vmodels.RiskProfile {
	return vmodels.RiskProfile{
		Profile:           p,
		FirstName:         rec.FirstName,
		FamilyName:        rec.FamilyName,
		DateOfBirth:       rec.DateOfBirth,
		OnboardingDate:    rec.OnboardingDate,
		ReportingCurrency: rec.ReportingCurrency,
		HasAnomaly:        rec.HasAnomaly,
		CurrentAddress:    address,
		PEPMatch:          s.PEP.Best(),
		SanctionsMatch:    s.Sanctions.Best(),
		Matches:           append(s.PEP.Results(), s.Sanctions.Results()...),
		CycleID:           cycleID,
	}
}
