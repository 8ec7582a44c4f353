package watchlist

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/watchlist/namematch"
	id "riskwatch/pkg/domain"
	"riskwatch/pkg/testutil"
)

var builtAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func person(cid, first, family string) models.CustomerRecord {
	return models.CustomerRecord{CustomerID: id.CustomerID(cid), FirstName: first, FamilyName: family}
}

func pep(eid, first, last string, level models.RiskLevel, status models.PEPStatus) models.PEPEntity {
	return models.PEPEntity{
		EntityID:  id.EntityID(eid),
		FullName:  first + " " + last,
		FirstName: first,
		LastName:  last,
		Category:  models.PEPCategoryDomestic,
		RiskLevel: level,
		Status:    status,
	}
}

func sanction(eid, name string) models.SanctionsEntity {
	return models.SanctionsEntity{EntityID: id.EntityID(eid), EntityName: name, EntityType: "INDIVIDUAL", Country: "RU"}
}

func entityID(t *testing.T, r MatchResult) id.EntityID {
	t.Helper()
	require.NotNil(t, r.EntityID)
	return *r.EntityID
}

func accuracy(t *testing.T, r MatchResult) float64 {
	t.Helper()
	require.NotNil(t, r.Accuracy)
	return *r.Accuracy
}

func TestScreen_Sanctions(t *testing.T) {
	testutil.Given(t, "a sanctions entity whose name differs only by case", func(t *testing.T) {
		snap := NewSnapshot(1, nil, []models.SanctionsEntity{sanction("SAN_001", "JANE SMITH")}, builtAt)
		got := NewMatcher(snap).Screen(person("CUST_00001", "Jane", "Smith"))

		testutil.Then(t, "it is an exact match scored 100", func(t *testing.T) {
			assert.Equal(t, MatchExact, got.Sanctions.Exact.Type)
			assert.Equal(t, id.EntityID("SAN_001"), entityID(t, got.Sanctions.Exact))
			assert.InDelta(t, 100.0, accuracy(t, got.Sanctions.Exact), 0)
			assert.Equal(t, models.WatchlistSanctions, got.Sanctions.Exact.Kind)
		})

		testutil.Then(t, "the exact entity is not also reported as fuzzy", func(t *testing.T) {
			assert.Equal(t, MatchNone, got.Sanctions.Fuzzy.Type)
			assert.Nil(t, got.Sanctions.Fuzzy.EntityID)
			assert.Nil(t, got.Sanctions.Fuzzy.Accuracy)
		})

		testutil.And(t, "the PEP side is empty", func(t *testing.T) {
			assert.False(t, got.PEP.Any())
		})
	})

	testutil.Given(t, "sanctions entities at increasing distances", func(t *testing.T) {
		snap := NewSnapshot(1, nil, []models.SanctionsEntity{
			sanction("SAN_010", "Jane Smithson"), // distance 3
			sanction("SAN_011", "Jane Smiths"),   // distance 1
		}, builtAt)
		got := NewMatcher(snap).Screen(person("CUST_00001", "Jane", "Smith"))

		testutil.Then(t, "the closest wins and is scored by full-name distance", func(t *testing.T) {
			assert.Equal(t, MatchFuzzy, got.Sanctions.Fuzzy.Type)
			assert.Equal(t, id.EntityID("SAN_011"), entityID(t, got.Sanctions.Fuzzy))
			assert.InDelta(t, 95.0, accuracy(t, got.Sanctions.Fuzzy), 0)
			assert.Equal(t, 1, got.Sanctions.Fuzzy.EditDistance)
		})
	})

	testutil.Given(t, "a two-word first name and entities whose split parts mislead", func(t *testing.T) {
		snap := NewSnapshot(1, nil, []models.SanctionsEntity{
			sanction("SAN_030", "Annamaria Lopezz"), // distance 2
			sanction("SAN_031", "Anna Maria Lopes"), // distance 1
		}, builtAt)
		got := NewMatcher(snap).Screen(person("CUST_00006", "Anna Maria", "Lopez"))

		testutil.Then(t, "the smaller full-name distance wins", func(t *testing.T) {
			assert.Equal(t, id.EntityID("SAN_031"), entityID(t, got.Sanctions.Fuzzy))
			assert.InDelta(t, 95.0, accuracy(t, got.Sanctions.Fuzzy), 0)
			assert.Equal(t, 1, got.Sanctions.Fuzzy.EditDistance)
		})
	})

	testutil.Given(t, "an organisation with a single-token name", func(t *testing.T) {
		snap := NewSnapshot(1, nil, []models.SanctionsEntity{sanction("SAN_020", "Rosneft")}, builtAt)

		testutil.Then(t, "only the full-name condition applies", func(t *testing.T) {
			got := NewMatcher(snap).Screen(person("CUST_00002", "", "Rosneftt"))
			assert.Equal(t, id.EntityID("SAN_020"), entityID(t, got.Sanctions.Fuzzy))
			assert.InDelta(t, 95.0, accuracy(t, got.Sanctions.Fuzzy), 0)
		})
	})
}

func TestScreen_PEP(t *testing.T) {
	testutil.Given(t, "a HIGH risk PEP one edit away on the first name", func(t *testing.T) {
		snap := NewSnapshot(1, []models.PEPEntity{
			pep("PEP_001", "John", "Smith", models.RiskLevelHigh, models.PEPStatusActive),
		}, nil, builtAt)
		got := NewMatcher(snap).Screen(person("CUST_00003", "Jon", "Smith"))

		testutil.Then(t, "it is a fuzzy match scored 90", func(t *testing.T) {
			assert.Equal(t, MatchNone, got.PEP.Exact.Type)
			assert.Equal(t, MatchFuzzy, got.PEP.Fuzzy.Type)
			assert.Equal(t, id.EntityID("PEP_001"), entityID(t, got.PEP.Fuzzy))
			assert.InDelta(t, 90.0, accuracy(t, got.PEP.Fuzzy), 0)
			assert.Equal(t, models.RiskLevelHigh, got.PEP.Fuzzy.RiskLevel)
			assert.Equal(t, "John Smith", got.PEP.Fuzzy.MatchedName)
		})
	})

	testutil.Given(t, "an inactive PEP with the customer's exact name", func(t *testing.T) {
		snap := NewSnapshot(1, []models.PEPEntity{
			pep("PEP_002", "Ana", "Lopez", models.RiskLevelMedium, models.PEPStatusInactive),
		}, nil, builtAt)
		got := NewMatcher(snap).Screen(person("CUST_00004", "ana", "LOPEZ"))

		testutil.Then(t, "it cannot match exactly but still surfaces as fuzzy", func(t *testing.T) {
			assert.Equal(t, MatchNone, got.PEP.Exact.Type)
			assert.Equal(t, MatchFuzzy, got.PEP.Fuzzy.Type)
			assert.InDelta(t, 95.0, accuracy(t, got.PEP.Fuzzy), 0)
		})
	})

	testutil.Given(t, "an exact match and a second close entity", func(t *testing.T) {
		snap := NewSnapshot(1, []models.PEPEntity{
			pep("PEP_010", "Maria", "Garcia", models.RiskLevelLow, models.PEPStatusActive),
			pep("PEP_011", "Mario", "Garcia", models.RiskLevelCritical, models.PEPStatusActive),
		}, nil, builtAt)
		got := NewMatcher(snap).Screen(person("CUST_00005", "Maria", "Garcia"))

		testutil.Then(t, "both sides are reported", func(t *testing.T) {
			assert.Equal(t, id.EntityID("PEP_010"), entityID(t, got.PEP.Exact))
			assert.Equal(t, id.EntityID("PEP_011"), entityID(t, got.PEP.Fuzzy))
			assert.Len(t, got.PEP.Results(), 2)
			assert.Equal(t, MatchExact, got.PEP.Best().Type)
		})
	})

	testutil.Given(t, "duplicate names on the list", func(t *testing.T) {
		snap := NewSnapshot(1, []models.PEPEntity{
			pep("PEP_B", "Omar", "Haddad", models.RiskLevelHigh, models.PEPStatusActive),
			pep("PEP_A", "Omar", "Haddad", models.RiskLevelLow, models.PEPStatusActive),
			pep("PEP_D", "Omer", "Haddad", models.RiskLevelHigh, models.PEPStatusActive),
			pep("PEP_C", "Omer", "Haddad", models.RiskLevelHigh, models.PEPStatusActive),
		}, nil, builtAt)
		got := NewMatcher(snap).Screen(person("CUST_00006", "Omar", "Haddad"))

		testutil.Then(t, "the smallest entity id is selected exactly", func(t *testing.T) {
			assert.Equal(t, id.EntityID("PEP_A"), entityID(t, got.PEP.Exact))
		})

		testutil.Then(t, "the remaining same-name entity is the closest fuzzy candidate", func(t *testing.T) {
			assert.Equal(t, id.EntityID("PEP_B"), entityID(t, got.PEP.Fuzzy))
		})
	})

	testutil.Given(t, "a PEP without first name", func(t *testing.T) {
		entity := models.PEPEntity{EntityID: "PEP_020", FullName: "Viktor Orlov", LastName: "Orlov", RiskLevel: models.RiskLevelHigh, Status: models.PEPStatusActive}
		snap := NewSnapshot(1, []models.PEPEntity{entity}, nil, builtAt)

		testutil.Then(t, "it is counted and limited to full-name checks", func(t *testing.T) {
			assert.Equal(t, 1, snap.Skipped()[models.WatchlistPEP][SkipMissingNameParts])
			got := NewMatcher(snap).Screen(person("CUST_00007", "Viktr", "Orlov"))
			assert.Equal(t, MatchFuzzy, got.PEP.Fuzzy.Type)
			assert.InDelta(t, 90.0, accuracy(t, got.PEP.Fuzzy), 0)
		})
	})
}

func TestNewSnapshot_SkipsInvalid(t *testing.T) {
	snap := NewSnapshot(7,
		[]models.PEPEntity{{EntityID: "PEP_1"}, pep("PEP_2", "A", "B", models.RiskLevelLow, models.PEPStatusActive)},
		[]models.SanctionsEntity{{EntityName: "no id"}},
		builtAt)

	assert.Equal(t, int64(7), snap.Version())
	p, s := snap.Size()
	assert.Equal(t, 1, p)
	assert.Equal(t, 0, s)
	assert.Equal(t, 1, snap.Skipped()[models.WatchlistPEP][SkipInvalid])
	assert.Equal(t, 1, snap.Skipped()[models.WatchlistSanctions][SkipInvalid])
}

func TestHolder(t *testing.T) {
	var h Holder
	assert.Nil(t, h.Current())

	first := NewSnapshot(1, nil, nil, builtAt)
	assert.Nil(t, h.Swap(first))
	second := NewSnapshot(2, nil, nil, builtAt)
	assert.Same(t, first, h.Swap(second))
	assert.Equal(t, int64(2), h.Current().Version())
}

// bruteForce scans every entry, which is what the blocking index must agree
// with.
func bruteForce(l *list, name namematch.Name) (exact, fuzzy id.EntityID) {
	exactPos := int32(-1)
	for i, e := range l.entries {
		if e.exactOK && e.name.Full == name.Full {
			exactPos = int32(i)
			exact = e.id
			break
		}
	}
	best := int32(-1)
	var bestCmp namematch.Comparison
	for i, e := range l.entries {
		if int32(i) == exactPos {
			continue
		}
		c := namematch.Compare(name, e.name)
		if c.Qualifies(l.fullLimit) && (best < 0 || l.closer(c, bestCmp)) {
			best, bestCmp = int32(i), c
		}
	}
	if best >= 0 {
		fuzzy = l.entries[best].id
	}
	return exact, fuzzy
}

func TestBlockingIndexAgreesWithFullScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 11))
	firsts := []string{"john", "jon", "joan", "jan", "ana", "anna", "maria", "mario", "li", "lee", "omar", "omer"}
	lasts := []string{"smith", "smyth", "smithe", "garcia", "garcya", "lopez", "lopes", "haddad", "hadad", "wu", "woo"}
	mutate := func(s string) string {
		if rng.IntN(3) > 0 || len(s) < 2 {
			return s
		}
		i := rng.IntN(len(s))
		return s[:i] + s[i+1:]
	}

	var peps []models.PEPEntity
	var sanctions []models.SanctionsEntity
	for i := range 300 {
		f, l := mutate(firsts[rng.IntN(len(firsts))]), mutate(lasts[rng.IntN(len(lasts))])
		status := models.PEPStatusActive
		if rng.IntN(4) == 0 {
			status = models.PEPStatusInactive
		}
		p := pep(fmt.Sprintf("PEP_%03d", i), f, l, models.RiskLevelMedium, status)
		if rng.IntN(10) == 0 {
			p.FirstName = ""
		}
		peps = append(peps, p)
		sanctions = append(sanctions, sanction(fmt.Sprintf("SAN_%03d", i), f+" "+l))
	}
	snap := NewSnapshot(1, peps, sanctions, builtAt)
	m := NewMatcher(snap)

	for i := range 400 {
		c := person(fmt.Sprintf("CUST_%05d", i), mutate(firsts[rng.IntN(len(firsts))]), mutate(lasts[rng.IntN(len(lasts))]))
		got := m.Screen(c)
		name := namematch.PersonName(c.FirstName, c.FamilyName)

		for _, tc := range []struct {
			l    *list
			pair Pair
		}{{snap.pep, got.PEP}, {snap.sanctions, got.Sanctions}} {
			wantExact, wantFuzzy := bruteForce(tc.l, name)
			var gotExact, gotFuzzy id.EntityID
			if tc.pair.Exact.EntityID != nil {
				gotExact = *tc.pair.Exact.EntityID
			}
			if tc.pair.Fuzzy.EntityID != nil {
				gotFuzzy = *tc.pair.Fuzzy.EntityID
			}
			require.Equal(t, wantExact, gotExact, "%s exact for %q", tc.l.kind, name.Full)
			require.Equal(t, wantFuzzy, gotFuzzy, "%s fuzzy for %q", tc.l.kind, name.Full)
		}
	}
}
