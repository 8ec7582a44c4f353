package screening

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"riskwatch/internal/eventstore/models"
	"riskwatch/internal/risk"
	"riskwatch/internal/screening/metrics"
	"riskwatch/internal/screening/mocks"
	vmodels "riskwatch/internal/views/models"
	"riskwatch/internal/watchlist"
	id "riskwatch/pkg/domain"
	audit "riskwatch/pkg/platform/audit"
	"riskwatch/pkg/platform/audit/publishers/compliance"
	"riskwatch/pkg/platform/audit/store/memory"
)

var cycleClock = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return cycleClock }

func customer(cid, first, family string, anomaly bool) models.CustomerRecord {
	return models.CustomerRecord{
		CustomerID:     id.CustomerID(cid),
		FirstName:      first,
		FamilyName:     family,
		DateOfBirth:    id.MustDate("1970-01-01"),
		OnboardingDate: id.MustDate("2020-01-01"),
		HasAnomaly:     anomaly,
	}
}

func move(seq int64, cid, street, day string) models.AddressEvent {
	return models.AddressEvent{
		Seq:        seq,
		CustomerID: id.CustomerID(cid),
		Street:     street,
		City:       "Berlin",
		Zipcode:    "10115",
		Country:    "Germany",
		InsertedAt: id.MustDate(day).Time().Add(9 * time.Hour),
	}
}

// sampleBatch holds one sanctioned customer with an anomaly, one clean
// customer, one exact PEP hit without address history, and address events
// for a customer missing from the master.
func sampleBatch() *models.Batch {
	return &models.Batch{
		Customers: []models.CustomerRecord{
			customer("CUST_00003", "Maria", "Lopez", false),
			customer("CUST_00001", "Vladimir", "Ivanov", true),
			customer("CUST_00002", "Anna", "Berg", false),
		},
		AddressEvents: []models.AddressEvent{
			move(3, "CUST_00001", "Second Street", "2024-02-01"),
			move(1, "CUST_00001", "First Street", "2023-01-15"),
			move(2, "CUST_00002", "Lake Road", "2023-05-05"),
			move(4, "CUST_09999", "Nowhere Lane", "2024-01-01"),
		},
		PEPEntities: []models.PEPEntity{{
			EntityID:  "PEP_001",
			FullName:  "Maria Lopez",
			FirstName: "Maria",
			LastName:  "Lopez",
			Category:  models.PEPCategoryForeign,
			RiskLevel: models.RiskLevelHigh,
			Status:    models.PEPStatusActive,
		}},
		SanctionsEntities: []models.SanctionsEntity{
			{EntityID: "SAN_001", EntityName: "Vladimir Ivanov", EntityType: "INDIVIDUAL", Country: "RU"},
		},
		WatchlistVersion: 7,
	}
}

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks
type EngineSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	source     *mocks.MockEventSource
	views      *mocks.MockViewPublisher
	auditStore *memory.InMemoryStore
	metrics    *metrics.Metrics
	engine     *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockEventSource(s.ctrl)
	s.views = mocks.NewMockViewPublisher(s.ctrl)
	s.auditStore = memory.NewInMemoryStore()
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.engine = New(s.source, s.views,
		WithAuditor(compliance.New(s.auditStore)),
		WithMetrics(s.metrics),
		WithPartitions(2),
		WithClock(fixedClock),
	)
}

func (s *EngineSuite) captureReplace() *vmodels.ViewSet {
	captured := new(vmodels.ViewSet)
	s.views.EXPECT().Replace(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, set *vmodels.ViewSet) error {
			*captured = *set
			return nil
		})
	return captured
}

func (s *EngineSuite) auditActions() []string {
	events, err := s.auditStore.ListAll(context.Background())
	s.Require().NoError(err)
	actions := make([]string, len(events))
	for i, e := range events {
		actions[i] = e.Action + ":" + e.Subject
	}
	return actions
}

func (s *EngineSuite) TestRunCyclePublishesViews() {
	ctx := context.Background()
	s.source.EXPECT().Load(gomock.Any()).Return(sampleBatch(), nil)
	set := s.captureReplace()

	report, err := s.engine.RunCycle(ctx)
	s.Require().NoError(err)

	s.Run("report", func() {
		s.Equal(3, report.Customers)
		s.Equal(4, report.AddressEvents)
		s.Equal(4, report.HistoryRows)
		s.Equal(1, report.PEPMatches)
		s.Equal(1, report.SanctionsMatches)
		s.Equal(2, report.ReviewRequired)
		s.Equal(int64(7), report.WatchlistVersion)
		s.Equal(map[risk.Rating]int{
			risk.RatingNoRisk:   1,
			risk.RatingLow:      0,
			risk.RatingMedium:   1,
			risk.RatingHigh:     0,
			risk.RatingCritical: 1,
		}, report.Ratings)
		s.Equal(report.CycleID, set.Cycle.CycleID)
		s.Equal(cycleClock, report.FinishedAt)
	})

	s.Run("profiles in customer order", func() {
		s.Require().Len(set.Profiles, 3)
		s.Equal(id.CustomerID("CUST_00001"), set.Profiles[0].CustomerID)
		s.Equal(id.CustomerID("CUST_00002"), set.Profiles[1].CustomerID)
		s.Equal(id.CustomerID("CUST_00003"), set.Profiles[2].CustomerID)
	})

	s.Run("sanctioned customer", func() {
		p := set.Profiles[0]
		s.Equal(risk.RatingCritical, p.OverallRating)
		s.Equal(100, p.OverallScore)
		s.True(p.HighRiskFlag)
		s.Equal(watchlist.MatchExact, p.SanctionsMatch.Type)
		s.Equal(watchlist.MatchNone, p.PEPMatch.Type)
		s.Require().NotNil(p.CurrentAddress)
		s.Equal("Second Street", p.CurrentAddress.Street)
		s.Equal(report.CycleID, p.CycleID)
	})

	s.Run("PEP customer without address history", func() {
		p := set.Profiles[2]
		s.Equal(risk.RatingMedium, p.OverallRating)
		s.Equal(string(models.RiskLevelHigh), p.OverallPEPRisk)
		s.Nil(p.CurrentAddress)
		s.Require().Len(p.Matches, 1)
		s.Equal(models.PEPCategoryForeign, p.Matches[0].Category)
	})

	s.Run("address views cover every customer with events", func() {
		s.Require().Len(set.Current, 3)
		s.Equal(id.CustomerID("CUST_09999"), set.Current[2].CustomerID)
		s.Require().Len(set.History, 4)
		s.Equal("First Street", set.History[0].Address.Street)
		s.Equal(id.MustDate("2024-01-31"), *set.History[0].ValidTo)
		s.True(set.History[1].IsCurrent)
	})

	s.Run("compliance trail", func() {
		s.Equal([]string{
			"customer_review_required:CUST_00001",
			"customer_review_required:CUST_00003",
			"cycle_completed:",
		}, s.auditActions())
	})
}

func (s *EngineSuite) TestLoadFailureAbandonsCycle() {
	s.source.EXPECT().Load(gomock.Any()).Return(nil, errors.New("database down"))

	report, err := s.engine.RunCycle(context.Background())
	s.Nil(report)

	var cerr *CycleError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StageLoad, cerr.Stage)
	s.Equal([]string{"cycle_failed:"}, s.auditActions())
}

func (s *EngineSuite) TestPublishFailureReportsStage() {
	s.source.EXPECT().Load(gomock.Any()).Return(sampleBatch(), nil)
	s.views.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(errors.New("redis unavailable"))

	_, err := s.engine.RunCycle(context.Background())

	var cerr *CycleError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StagePublish, cerr.Stage)
	s.Contains(s.auditActions(), "cycle_failed:")
}

func (s *EngineSuite) TestWatchlistVersionGaugeFollowsPublishedViews() {
	newer := sampleBatch()
	newer.WatchlistVersion = 8

	gomock.InOrder(
		s.source.EXPECT().Load(gomock.Any()).Return(sampleBatch(), nil),
		s.source.EXPECT().Load(gomock.Any()).Return(newer, nil),
	)
	gomock.InOrder(
		s.views.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil),
		s.views.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(errors.New("redis unavailable")),
	)

	ctx := context.Background()
	_, err := s.engine.RunCycle(ctx)
	s.Require().NoError(err)
	s.Equal(7.0, promtestutil.ToFloat64(s.metrics.WatchlistVersion))

	_, err = s.engine.RunCycle(ctx)
	s.Require().Error(err)
	s.Equal(7.0, promtestutil.ToFloat64(s.metrics.WatchlistVersion),
		"a failed cycle must not advance the published watchlist version")
}

func (s *EngineSuite) TestAuditFailureBlocksPublish() {
	auditor := mocks.NewMockAuditPublisher(s.ctrl)
	engine := New(s.source, s.views, WithAuditor(auditor), WithClock(fixedClock))

	batch := sampleBatch()
	batch.PEPEntities = nil // leaves exactly one flagged customer
	s.source.EXPECT().Load(gomock.Any()).Return(batch, nil)
	gomock.InOrder(
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox full")),
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, events ...audit.ComplianceEvent) error {
				s.Require().Len(events, 1)
				s.Equal(string(audit.EventCycleFailed), events[0].Action)
				s.Equal(string(StageAudit), events[0].Reason)
				return nil
			}),
	)
	// Replace must not be called

	_, err := engine.RunCycle(context.Background())

	var cerr *CycleError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StageAudit, cerr.Stage)
}

func (s *EngineSuite) TestCancelledContextPublishesNothing() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.engine.RunCycle(ctx)

	s.Require().ErrorIs(err, context.Canceled)
	var cerr *CycleError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StageLoad, cerr.Stage)
	// the failure is still recorded despite the cancelled context
	s.Equal([]string{"cycle_failed:"}, s.auditActions())
}

func (s *EngineSuite) TestSnapshotReusedUntilVersionChanges() {
	first := sampleBatch()
	second := sampleBatch()
	third := sampleBatch()
	third.WatchlistVersion = 8

	gomock.InOrder(
		s.source.EXPECT().Load(gomock.Any()).Return(first, nil),
		s.source.EXPECT().Load(gomock.Any()).Return(second, nil),
		s.source.EXPECT().Load(gomock.Any()).Return(third, nil),
	)
	s.views.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	ctx := context.Background()
	_, err := s.engine.RunCycle(ctx)
	s.Require().NoError(err)
	snap := s.engine.Holder().Current()

	_, err = s.engine.RunCycle(ctx)
	s.Require().NoError(err)
	s.Same(snap, s.engine.Holder().Current())

	_, err = s.engine.RunCycle(ctx)
	s.Require().NoError(err)
	s.NotSame(snap, s.engine.Holder().Current())
	s.Equal(int64(8), s.engine.Holder().Current().Version())
}

func (s *EngineSuite) TestOverlappingCycleRejected() {
	release := make(chan struct{})
	loading := make(chan struct{})
	s.source.EXPECT().Load(gomock.Any()).DoAndReturn(func(context.Context) (*models.Batch, error) {
		close(loading)
		<-release
		return sampleBatch(), nil
	})
	s.views.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.engine.RunCycle(context.Background())
		done <- err
	}()
	<-loading

	_, err := s.engine.RunCycle(context.Background())
	s.ErrorIs(err, ErrCycleRunning)

	close(release)
	s.NoError(<-done)
}

// Results must not depend on how customers are split across partitions.
func TestPartitioningDoesNotChangeOutput(t *testing.T) {
	run := func(partitions int) *vmodels.ViewSet {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockEventSource(ctrl)
		views := mocks.NewMockViewPublisher(ctrl)
		source.EXPECT().Load(gomock.Any()).Return(sampleBatch(), nil)

		var captured *vmodels.ViewSet
		views.EXPECT().Replace(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, set *vmodels.ViewSet) error {
				captured = set
				return nil
			})

		_, err := New(source, views, WithPartitions(partitions), WithClock(fixedClock)).RunCycle(context.Background())
		require.NoError(t, err)
		for i := range captured.Profiles {
			captured.Profiles[i].CycleID = id.CycleID{}
		}
		captured.Cycle.CycleID = id.CycleID{}
		return captured
	}

	want := run(1)
	for _, n := range []int{2, 3, 16} {
		assert.Equal(t, want, run(n), "partitions=%d", n)
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, parts int
		want     []bounds
	}{
		{0, 4, nil},
		{5, 1, []bounds{{0, 5}}},
		{5, 2, []bounds{{0, 3}, {3, 5}}},
		{3, 8, []bounds{{0, 1}, {1, 2}, {2, 3}}},
		{7, 3, []bounds{{0, 3}, {3, 5}, {5, 7}}},
		{4, 0, []bounds{{0, 4}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, partition(tt.n, tt.parts), "n=%d parts=%d", tt.n, tt.parts)
	}
}

func TestBuildUnits(t *testing.T) {
	units := buildUnits(sampleBatch())

	require.Len(t, units, 4)
	ids := make([]id.CustomerID, len(units))
	for i, u := range units {
		ids[i] = u.id
	}
	assert.Equal(t, []id.CustomerID{"CUST_00001", "CUST_00002", "CUST_00003", "CUST_09999"}, ids)
	assert.Len(t, units[0].events, 2)
	assert.Nil(t, units[3].record)
	assert.Empty(t, units[2].events)
}
