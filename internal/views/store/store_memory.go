package store

import (
	"context"
	"slices"
	"sync/atomic"

	"riskwatch/internal/views/models"
	id "riskwatch/pkg/domain"
	"riskwatch/pkg/platform/sentinel"
)

type memoryViews struct {
	cycle    models.CycleReport
	current  map[id.CustomerID]models.AddressRow
	history  map[id.CustomerID][]models.AddressRow
	profiles map[id.CustomerID]models.RiskProfile
	order    []id.CustomerID // profile keys in customer order
}

// InMemoryStore keeps the latest ViewSet behind an atomic pointer. A
// Replace is a single pointer swap.
type InMemoryStore struct {
	views atomic.Pointer[memoryViews]
}

// NewInMemoryStore returns an empty store; reads fail with ErrNotFound
// until the first Replace.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Replace(ctx context.Context, set *models.ViewSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := &memoryViews{
		cycle:    set.Cycle,
		current:  make(map[id.CustomerID]models.AddressRow, len(set.Current)),
		history:  make(map[id.CustomerID][]models.AddressRow, len(set.Current)),
		profiles: make(map[id.CustomerID]models.RiskProfile, len(set.Profiles)),
		order:    make([]id.CustomerID, 0, len(set.Profiles)),
	}
	for _, row := range set.Current {
		v.current[row.CustomerID] = row
	}
	for _, row := range set.History {
		v.history[row.CustomerID] = append(v.history[row.CustomerID], row)
	}
	for _, p := range set.Profiles {
		if _, dup := v.profiles[p.CustomerID]; !dup {
			v.order = append(v.order, p.CustomerID)
		}
		v.profiles[p.CustomerID] = p
	}
	slices.Sort(v.order)
	s.views.Store(v)
	return nil
}

func (s *InMemoryStore) load() (*memoryViews, error) {
	v := s.views.Load()
	if v == nil {
		return nil, sentinel.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) CurrentAddress(_ context.Context, cid id.CustomerID) (models.AddressRow, error) {
	v, err := s.load()
	if err != nil {
		return models.AddressRow{}, err
	}
	row, ok := v.current[cid]
	if !ok {
		return models.AddressRow{}, sentinel.ErrNotFound
	}
	return row, nil
}

func (s *InMemoryStore) AddressHistory(_ context.Context, cid id.CustomerID) ([]models.AddressRow, error) {
	v, err := s.load()
	if err != nil {
		return nil, err
	}
	rows, ok := v.history[cid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return slices.Clone(rows), nil
}

func (s *InMemoryStore) RiskProfile(_ context.Context, cid id.CustomerID) (models.RiskProfile, error) {
	v, err := s.load()
	if err != nil {
		return models.RiskProfile{}, err
	}
	p, ok := v.profiles[cid]
	if !ok {
		return models.RiskProfile{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) ListRiskProfiles(_ context.Context, filter models.Filter) ([]models.RiskProfile, error) {
	v, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.RiskProfile, 0)
	for _, cid := range v.order {
		if p := v.profiles[cid]; filter.Matches(p) {
			out = append(out, p)
		}
	}
	return models.Page(out, filter), nil
}

func (s *InMemoryStore) LatestCycle(_ context.Context) (models.CycleReport, error) {
	v, err := s.load()
	if err != nil {
		return models.CycleReport{}, err
	}
	return v.cycle, nil
}
