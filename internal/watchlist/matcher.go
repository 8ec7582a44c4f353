package watchlist

import (
	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/watchlist/namematch"
	id "riskwatch/pkg/domain"
)

const exactAccuracy = 100.0

// Matcher screens customers against one snapshot. It holds no mutable
// state, so one Matcher can serve many goroutines.
type Matcher struct {
	snap *Snapshot
}

// NewMatcher binds a matcher to a snapshot.
func NewMatcher(snap *Snapshot) *Matcher {
	return &Matcher{snap: snap}
}

// Snapshot returns the snapshot the matcher screens against.
func (m *Matcher) Snapshot() *Snapshot { return m.snap }

// Screen matches one customer against both lists.
func (m *Matcher) Screen(c models.CustomerRecord) Screening {
	name := namematch.PersonName(c.FirstName, c.FamilyName)
	return Screening{
		CustomerID: c.CustomerID,
		PEP:        m.snap.pep.screen(c.CustomerID, name),
		Sanctions:  m.snap.sanctions.screen(c.CustomerID, name),
	}
}

func (l *list) screen(cid id.CustomerID, name namematch.Name) Pair {
	pair := Pair{Exact: noMatch(cid, l.kind), Fuzzy: noMatch(cid, l.kind)}
	if name.Full == "" {
		return pair
	}

	exactPos := int32(-1)
	if pos, ok := l.exact[name.Full]; ok {
		exactPos = pos
		pair.Exact = l.result(cid, MatchExact, pos, exactAccuracy, 0)
	}

	best := int32(-1)
	var bestCmp namematch.Comparison
	for _, pos := range l.index.candidates(name, l.fullLimit) {
		if pos == exactPos {
			continue
		}
		c := namematch.Compare(name, l.entries[pos].name)
		if !c.Qualifies(l.fullLimit) {
			continue
		}
		// positions ascend by entity id, so the first of equals wins
		if best < 0 || l.closer(c, bestCmp) {
			best, bestCmp = pos, c
		}
	}
	if best >= 0 {
		pair.Fuzzy = l.result(cid, MatchFuzzy, best, l.accuracy(bestCmp), bestCmp.Full)
	}
	return pair
}

func (l *list) closer(a, b namematch.Comparison) bool {
	if ra, rb := l.rank(a), l.rank(b); ra != rb {
		return ra < rb
	}
	return a.Full < b.Full
}

func (l *list) result(cid id.CustomerID, t MatchType, pos int32, accuracy float64, distance int) MatchResult {
	e := l.entries[pos]
	entityID := e.id
	return MatchResult{
		CustomerID:   cid,
		Kind:         l.kind,
		Type:         t,
		EntityID:     &entityID,
		Accuracy:     &accuracy,
		MatchedName:  e.displayName,
		EditDistance: distance,
		RiskLevel:    e.riskLevel,
		Category:     e.category,
	}
}
