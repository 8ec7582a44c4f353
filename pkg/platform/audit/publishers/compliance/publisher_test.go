package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "riskwatch/pkg/domain"
	audit "riskwatch/pkg/platform/audit"
	"riskwatch/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, ...audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestEmit(t *testing.T) {
	ctx := context.Background()
	cycleID := id.NewCycleID()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("persists all events with category and timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store, WithClock(func() time.Time { return fixed }))

		err := pub.Emit(ctx,
			audit.ComplianceEvent{CycleID: cycleID, Subject: "CUST_00001", Action: string(audit.EventCustomerReviewRequired), Decision: "CRITICAL"},
			audit.ComplianceEvent{CycleID: cycleID, Action: string(audit.EventCycleCompleted)},
		)
		require.NoError(t, err)

		events, err := store.ListByCycle(ctx, cycleID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.Equal(t, fixed, events[0].Timestamp)
		assert.Equal(t, "CUST_00001", events[0].Subject)
		assert.NotEqual(t, events[0].ID, events[1].ID)
	})

	t.Run("rejects events without cycle", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		err := New(store).Emit(ctx, audit.ComplianceEvent{Action: string(audit.EventCycleCompleted)})
		require.Error(t, err)

		all, _ := store.ListAll(ctx)
		assert.Empty(t, all)
	})

	t.Run("rejects events without action", func(t *testing.T) {
		err := New(memory.NewInMemoryStore()).Emit(ctx, audit.ComplianceEvent{CycleID: cycleID})
		require.Error(t, err)
	})

	t.Run("fails closed when the store fails", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		pub := New(failingStore{}, WithMetrics(m))

		err := pub.Emit(ctx, audit.ComplianceEvent{CycleID: cycleID, Action: string(audit.EventCycleFailed)})
		require.Error(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.EventsEmitted))
	})

	t.Run("no events is a no-op", func(t *testing.T) {
		require.NoError(t, New(failingStore{}).Emit(ctx))
	})
}

func TestEventCategory(t *testing.T) {
	assert.Equal(t, audit.CategoryCompliance, audit.EventCycleFailed.Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventWatchlistRefreshed.Category())
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("unknown").Category())
}
