package temporal

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/eventstore/models"
	id "riskwatch/pkg/domain"
	"riskwatch/pkg/testutil"
)

func event(seq int64, cid, street string, at time.Time) models.AddressEvent {
	return models.AddressEvent{
		Seq:        seq,
		CustomerID: id.CustomerID(cid),
		Street:     street,
		City:       "Lisbon",
		Zipcode:    "1100-148",
		Country:    "Portugal",
		InsertedAt: at,
	}
}

func day(s string) time.Time {
	return id.MustDate(s).Time().Add(10 * time.Hour)
}

func TestProjectCustomer(t *testing.T) {
	testutil.Given(t, "three address changes on distinct days", func(t *testing.T) {
		events := []models.AddressEvent{
			event(3, "CUST_00001", "Rua C", day("2024-03-01")),
			event(1, "CUST_00001", "Rua A", day("2024-01-10")),
			event(2, "CUST_00001", "Rua B", day("2024-02-15")),
		}
		history := ProjectCustomer(events)

		testutil.Then(t, "each change opens an interval closed the day before the next", func(t *testing.T) {
			require.Len(t, history, 3)
			assert.Equal(t, "Rua A", history[0].Address.Street)
			assert.Equal(t, "2024-01-10", history[0].ValidFrom.String())
			require.NotNil(t, history[0].ValidTo)
			assert.Equal(t, "2024-02-14", history[0].ValidTo.String())
			assert.False(t, history[0].IsCurrent)

			assert.Equal(t, "2024-02-15", history[1].ValidFrom.String())
			require.NotNil(t, history[1].ValidTo)
			assert.Equal(t, "2024-02-29", history[1].ValidTo.String())
			assert.False(t, history[1].IsCurrent)

			assert.Equal(t, "Rua C", history[2].Address.Street)
			assert.Equal(t, "2024-03-01", history[2].ValidFrom.String())
			assert.Nil(t, history[2].ValidTo)
			assert.True(t, history[2].IsCurrent)
		})

		testutil.Then(t, "the input slice is left untouched", func(t *testing.T) {
			assert.Equal(t, "Rua C", events[0].Street)
		})
	})

	testutil.Given(t, "a single event", func(t *testing.T) {
		history := ProjectCustomer([]models.AddressEvent{event(1, "CUST_00002", "Rua Z", day("2023-07-01"))})

		testutil.Then(t, "it is the open current interval", func(t *testing.T) {
			require.Len(t, history, 1)
			assert.True(t, history[0].IsCurrent)
			assert.Nil(t, history[0].ValidTo)
		})
	})

	testutil.Given(t, "no events", func(t *testing.T) {
		testutil.Then(t, "there is no history", func(t *testing.T) {
			assert.Empty(t, ProjectCustomer(nil))
			_, ok := Current(nil)
			assert.False(t, ok)
		})
	})

	testutil.Given(t, "two events with the same timestamp", func(t *testing.T) {
		at := day("2024-05-05")
		history := ProjectCustomer([]models.AddressEvent{
			event(8, "CUST_00003", "Second", at),
			event(7, "CUST_00003", "First", at),
		})

		testutil.Then(t, "the store sequence decides the order", func(t *testing.T) {
			require.Len(t, history, 2)
			assert.Equal(t, "First", history[0].Address.Street)
			assert.Equal(t, "Second", history[1].Address.Street)
			assert.True(t, history[1].IsCurrent)
		})

		testutil.Then(t, "the superseded interval covers no day", func(t *testing.T) {
			assert.True(t, history[0].IsEmpty())
			iv, ok := At(history, id.MustDate("2024-05-05"))
			require.True(t, ok)
			assert.Equal(t, "Second", iv.Address.Street)
		})
	})
}

func TestAt(t *testing.T) {
	history := ProjectCustomer([]models.AddressEvent{
		event(1, "CUST_00001", "Rua A", day("2024-01-10")),
		event(2, "CUST_00001", "Rua B", day("2024-02-15")),
		event(3, "CUST_00001", "Rua C", day("2024-03-01")),
	})

	tests := []struct {
		name   string
		date   string
		street string
		found  bool
	}{
		{"before first change", "2024-01-09", "", false},
		{"first day", "2024-01-10", "Rua A", true},
		{"last day of first interval", "2024-02-14", "Rua A", true},
		{"boundary of second", "2024-02-15", "Rua B", true},
		{"inside second", "2024-02-20", "Rua B", true},
		{"start of current", "2024-03-01", "Rua C", true},
		{"far future", "2030-01-01", "Rua C", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, ok := At(history, id.MustDate(tt.date))
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.street, iv.Address.Street)
			}
		})
	}
}

func TestTimeline(t *testing.T) {
	tl := Project([]models.AddressEvent{
		event(1, "CUST_00002", "B1", day("2024-01-01")),
		event(2, "CUST_00001", "A1", day("2024-01-01")),
		event(3, "CUST_00002", "B2", day("2024-04-01")),
	})

	assert.Equal(t, []id.CustomerID{"CUST_00001", "CUST_00002"}, tl.Customers())
	assert.Len(t, tl.All(), 3)
	assert.Len(t, tl.History("CUST_00002"), 2)
	assert.Nil(t, tl.History("CUST_99999"))

	cur, ok := tl.Current("CUST_00002")
	require.True(t, ok)
	assert.Equal(t, "B2", cur.Address.Street)

	iv, ok := tl.At("CUST_00002", id.MustDate("2024-02-01"))
	require.True(t, ok)
	assert.Equal(t, "B1", iv.Address.Street)

	_, ok = tl.Current("CUST_99999")
	assert.False(t, ok)

	currents := tl.CurrentAll()
	require.Len(t, currents, 2)
	assert.Equal(t, id.CustomerID("CUST_00001"), currents[0].CustomerID)
}

// TestProjectionProperties checks the history shape over random event logs.
func TestProjectionProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for round := range 200 {
		n := 1 + rng.IntN(12)
		events := make([]models.AddressEvent, n)
		for i := range events {
			at := start.Add(time.Duration(rng.IntN(60*24)) * time.Hour)
			events[i] = event(int64(i+1), "CUST_00001", "S", at)
		}
		history := ProjectCustomer(events)

		require.Len(t, history, n, "round %d", round)
		current := 0
		for i, iv := range history {
			if iv.IsCurrent {
				current++
				assert.Nil(t, iv.ValidTo, "round %d", round)
				continue
			}
			require.NotNil(t, iv.ValidTo, "round %d", round)
			assert.True(t, iv.ValidTo.Equal(history[i+1].ValidFrom.AddDays(-1)), "round %d", round)
			assert.False(t, history[i+1].ValidFrom.Before(iv.ValidFrom), "round %d", round)
		}
		assert.Equal(t, 1, current, "round %d", round)

		// every covered day resolves to exactly one non-empty interval
		for d := history[0].ValidFrom; !d.After(history[n-1].ValidFrom.AddDays(3)); d = d.AddDays(1) {
			matches := 0
			for _, iv := range history {
				if !iv.IsEmpty() && iv.Contains(d) {
					matches++
				}
			}
			assert.Equal(t, 1, matches, "round %d day %s", round, d)
			_, ok := At(history, d)
			assert.True(t, ok, "round %d day %s", round, d)
		}
	}
}
