// Package temporal derives slowly-changing address state from the
// append-only address event log: the current address per customer and the
// full validity-interval history (SCD type 2).
//
// Everything here is pure: no I/O, no clock. Callers pass the events in and
// get intervals out, so the same functions serve the batch cycle and the
// reporting read path.
package temporal

import (
	"slices"
	"sort"
	"time"

	"riskwatch/internal/eventstore/models"
	id "riskwatch/pkg/domain"
)

// Interval is one row of a customer's address history. ValidTo is nil for
// the open (current) interval.
type Interval struct {
	CustomerID id.CustomerID  `json:"customer_id"`
	Address    models.Address `json:"address"`
	ValidFrom  id.Date        `json:"valid_from"`
	ValidTo    *id.Date       `json:"valid_to"`
	IsCurrent  bool           `json:"is_current"`
	// SourceSeq and InsertedAt identify the event the interval came from.
	SourceSeq  int64     `json:"source_seq"`
	InsertedAt time.Time `json:"inserted_at"`
}

// Contains reports whether d falls inside [ValidFrom, ValidTo].
func (iv Interval) Contains(d id.Date) bool {
	if d.Before(iv.ValidFrom) {
		return false
	}
	return iv.ValidTo == nil || !d.After(*iv.ValidTo)
}

// IsEmpty reports whether the interval covers no day at all. This happens
// when the next change lands on the same calendar day.
func (iv Interval) IsEmpty() bool {
	return iv.ValidTo != nil && iv.ValidTo.Before(iv.ValidFrom)
}

// ProjectCustomer turns one customer's events into their history. Events
// are ordered by InsertedAt, then Seq; the input slice is not modified.
// n events always yield n intervals and only the last is current.
func ProjectCustomer(events []models.AddressEvent) []Interval {
	if len(events) == 0 {
		return nil
	}
	sorted := slices.Clone(events)
	sortEvents(sorted)

	out := make([]Interval, len(sorted))
	for i, e := range sorted {
		out[i] = Interval{
			CustomerID: e.CustomerID,
			Address:    e.Address(),
			ValidFrom:  id.DateOf(e.InsertedAt),
			SourceSeq:  e.Seq,
			InsertedAt: e.InsertedAt.UTC(),
		}
		if i > 0 {
			end := out[i].ValidFrom.AddDays(-1)
			out[i-1].ValidTo = &end
		}
	}
	out[len(out)-1].IsCurrent = true
	return out
}

// Current returns the open interval of a projected history.
func Current(history []Interval) (Interval, bool) {
	if len(history) == 0 {
		return Interval{}, false
	}
	last := history[len(history)-1]
	return last, last.IsCurrent
}

// At returns the interval valid on day d. Intervals are ordered and
// non-overlapping, so at most one can contain d.
func At(history []Interval, d id.Date) (Interval, bool) {
	// first interval whose ValidFrom is after d; the candidate precedes it
	i := sort.Search(len(history), func(i int) bool {
		return history[i].ValidFrom.After(d)
	})
	for j := i - 1; j >= 0; j-- {
		iv := history[j]
		if iv.IsEmpty() {
			continue
		}
		if iv.Contains(d) {
			return iv, true
		}
		return Interval{}, false
	}
	return Interval{}, false
}

// GroupEvents indexes events by customer. Each group keeps arrival order;
// ordering is applied by ProjectCustomer.
func GroupEvents(events []models.AddressEvent) map[id.CustomerID][]models.AddressEvent {
	groups := make(map[id.CustomerID][]models.AddressEvent)
	for _, e := range events {
		groups[e.CustomerID] = append(groups[e.CustomerID], e)
	}
	return groups
}

func sortEvents(events []models.AddressEvent) {
	slices.SortStableFunc(events, func(a, b models.AddressEvent) int {
		if c := a.InsertedAt.Compare(b.InsertedAt); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}
