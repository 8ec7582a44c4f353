package temporal

import (
	"slices"

	"riskwatch/internal/eventstore/models"
	id "riskwatch/pkg/domain"
)

// Timeline is the projected history of a whole customer population, laid
// out as one arena of intervals with a per-customer span index.
type Timeline struct {
	intervals []Interval
	spans     map[id.CustomerID]span
	customers []id.CustomerID
}

type span struct{ lo, hi int }

// Project builds the timeline for every customer that has events.
func Project(events []models.AddressEvent) *Timeline {
	groups := GroupEvents(events)
	customers := make([]id.CustomerID, 0, len(groups))
	for cid := range groups {
		customers = append(customers, cid)
	}
	slices.Sort(customers)

	t := &Timeline{
		intervals: make([]Interval, 0, len(events)),
		spans:     make(map[id.CustomerID]span, len(groups)),
		customers: customers,
	}
	for _, cid := range customers {
		lo := len(t.intervals)
		t.intervals = append(t.intervals, ProjectCustomer(groups[cid])...)
		t.spans[cid] = span{lo: lo, hi: len(t.intervals)}
	}
	return t
}

// Customers lists customers with at least one event, in key order.
func (t *Timeline) Customers() []id.CustomerID {
	return slices.Clone(t.customers)
}

// History returns the customer's intervals ordered by ValidFrom, or nil
// when the customer has no address events.
func (t *Timeline) History(cid id.CustomerID) []Interval {
	sp, ok := t.spans[cid]
	if !ok {
		return nil
	}
	return slices.Clone(t.intervals[sp.lo:sp.hi])
}

// Current returns the customer's open interval.
func (t *Timeline) Current(cid id.CustomerID) (Interval, bool) {
	sp, ok := t.spans[cid]
	if !ok {
		return Interval{}, false
	}
	return Current(t.intervals[sp.lo:sp.hi])
}

// At answers a point-in-time query for one customer.
func (t *Timeline) At(cid id.CustomerID, d id.Date) (Interval, bool) {
	sp, ok := t.spans[cid]
	if !ok {
		return Interval{}, false
	}
	return At(t.intervals[sp.lo:sp.hi], d)
}

// All returns every interval, grouped by customer in key order.
func (t *Timeline) All() []Interval {
	return slices.Clone(t.intervals)
}

// CurrentAll returns one open interval per customer, in key order.
func (t *Timeline) CurrentAll() []Interval {
	out := make([]Interval, 0, len(t.customers))
	for _, cid := range t.customers {
		if iv, ok := t.Current(cid); ok {
			out = append(out, iv)
		}
	}
	return out
}
