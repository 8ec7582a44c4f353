package watchlist

import (
	"cmp"
	"slices"
	"time"

	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/watchlist/namematch"
	id "riskwatch/pkg/domain"
)

// Skip reasons reported by Snapshot.Skipped.
const (
	SkipInvalid          = "invalid"
	SkipMissingNameParts = "missing_name_parts"
)

type entry struct {
	id          id.EntityID
	name        namematch.Name
	displayName string
	exactOK     bool // PEP entries must be active to match exactly
	riskLevel   models.RiskLevel
	category    models.PEPCategory
}

type list struct {
	kind      models.WatchlistKind
	entries   []entry
	exact     map[string]int32 // normalised full name -> smallest eligible entity
	index     blockIndex
	fullLimit int
	accuracy  func(namematch.Comparison) float64
	rank      func(namematch.Comparison) int
}

// Snapshot is an immutable, indexed view of both watchlists. It is built
// once per cycle and shared read-only by every matching goroutine.
type Snapshot struct {
	version   int64
	builtAt   time.Time
	pep       *list
	sanctions *list
	skipped   map[models.WatchlistKind]map[string]int
}

// NewSnapshot normalises and indexes the lists. Entities without an ID or
// a name are left out; entities without name parts are kept for the
// full-name checks only.
func NewSnapshot(version int64, pep []models.PEPEntity, sanctions []models.SanctionsEntity, builtAt time.Time) *Snapshot {
	s := &Snapshot{
		version: version,
		builtAt: builtAt,
		skipped: map[models.WatchlistKind]map[string]int{
			models.WatchlistPEP:       {},
			models.WatchlistSanctions: {},
		},
	}

	pepEntries := make([]entry, 0, len(pep))
	for _, p := range pep {
		if p.Validate() != nil {
			s.skipped[models.WatchlistPEP][SkipInvalid]++
			continue
		}
		e := entry{
			id:          p.EntityID,
			name:        namematch.NewName(p.FullName, p.FirstName, p.LastName),
			displayName: p.FullName,
			exactOK:     p.IsActive(),
			riskLevel:   p.RiskLevel,
			category:    p.Category,
		}
		if !e.name.HasParts() {
			s.skipped[models.WatchlistPEP][SkipMissingNameParts]++
		}
		pepEntries = append(pepEntries, e)
	}
	s.pep = newList(models.WatchlistPEP, pepEntries, namematch.PEPFullNameLimit, namematch.PEPAccuracy, namematch.Comparison.Combined)

	sanctionEntries := make([]entry, 0, len(sanctions))
	for _, se := range sanctions {
		if se.Validate() != nil {
			s.skipped[models.WatchlistSanctions][SkipInvalid]++
			continue
		}
		e := entry{
			id:          se.EntityID,
			name:        namematch.SplitName(se.EntityName),
			displayName: se.EntityName,
			exactOK:     true,
		}
		if !e.name.HasParts() {
			s.skipped[models.WatchlistSanctions][SkipMissingNameParts]++
		}
		sanctionEntries = append(sanctionEntries, e)
	}
	s.sanctions = newList(models.WatchlistSanctions, sanctionEntries, namematch.SanctionsFullNameLimit, namematch.SanctionsAccuracy, namematch.Comparison.FullDistance)

	return s
}

// rank orders qualifying fuzzy candidates, lower first. It must agree with
// accuracy so the chosen candidate is never scored below a rejected one.
func newList(
	kind models.WatchlistKind,
	entries []entry,
	fullLimit int,
	accuracy func(namematch.Comparison) float64,
	rank func(namematch.Comparison) int,
) *list {
	// entity order makes every tie-break below a comparison of positions
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.id, b.id) })

	l := &list{
		kind:      kind,
		entries:   entries,
		exact:     make(map[string]int32),
		index:     newBlockIndex(entries),
		fullLimit: fullLimit,
		accuracy:  accuracy,
		rank:      rank,
	}
	for i, e := range entries {
		if !e.exactOK {
			continue
		}
		if _, taken := l.exact[e.name.Full]; !taken {
			l.exact[e.name.Full] = int32(i)
		}
	}
	return l
}

// Version is the event-store watchlist version the snapshot was built from.
func (s *Snapshot) Version() int64 { return s.version }

// BuiltAt is when the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Size returns the number of usable entities per list.
func (s *Snapshot) Size() (pep, sanctions int) {
	return len(s.pep.entries), len(s.sanctions.entries)
}

// Skipped returns how many entities were excluded, or restricted to
// full-name checks, per list and reason.
func (s *Snapshot) Skipped() map[models.WatchlistKind]map[string]int {
	out := make(map[models.WatchlistKind]map[string]int, len(s.skipped))
	for kind, reasons := range s.skipped {
		out[kind] = make(map[string]int, len(reasons))
		for reason, n := range reasons {
			out[kind][reason] = n
		}
	}
	return out
}
