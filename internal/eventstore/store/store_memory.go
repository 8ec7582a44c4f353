package store

import (
	"context"
	"fmt"
	"sync"

	"riskwatch/internal/eventstore/models"
	id "riskwatch/pkg/domain"
	"riskwatch/pkg/platform/sentinel"
)

// InMemoryStore is an append-only event store kept in process memory. It is
// the default for local runs and the reference implementation for tests.
type InMemoryStore struct {
	mu sync.RWMutex

	customers     map[id.CustomerID]models.CustomerRecord
	customerOrder []id.CustomerID

	events    []models.AddressEvent
	eventKeys map[addressEventKey]struct{}
	nextSeq   int64

	pep       []models.PEPEntity
	sanctions []models.SanctionsEntity
	version   int64
}

// addressEventKey identifies a redelivered copy of the same change.
type addressEventKey struct {
	customerID id.CustomerID
	insertedAt int64
	address    string
}

func newAddressEventKey(e models.AddressEvent) addressEventKey {
	state := ""
	if e.State != nil {
		state = *e.State
	}
	return addressEventKey{
		customerID: e.CustomerID,
		insertedAt: e.InsertedAt.UTC().UnixNano(),
		address:    fmt.Sprintf("%s\x1f%s\x1f%s\x1f%s\x1f%s", e.Street, e.City, state, e.Zipcode, e.Country),
	}
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		customers: make(map[id.CustomerID]models.CustomerRecord),
		eventKeys: make(map[addressEventKey]struct{}),
	}
}

// AppendCustomers inserts customer master records. Re-sending an identical
// record is a no-op; a different record under an existing key is rejected
// with sentinel.ErrConflict and nothing from the batch is stored.
func (s *InMemoryStore) AppendCustomers(_ context.Context, records []models.CustomerRecord) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[id.CustomerID]models.CustomerRecord, len(records))
	for _, r := range records {
		if existing, ok := s.customers[r.CustomerID]; ok {
			if !sameCustomer(existing, r) {
				return fmt.Errorf("customer %s: %w", r.CustomerID, sentinel.ErrConflict)
			}
			continue
		}
		if queued, ok := pending[r.CustomerID]; ok && !sameCustomer(queued, r) {
			return fmt.Errorf("customer %s: %w", r.CustomerID, sentinel.ErrConflict)
		}
		pending[r.CustomerID] = r
	}
	for _, r := range records {
		if _, ok := pending[r.CustomerID]; !ok {
			continue
		}
		s.customers[r.CustomerID] = r
		s.customerOrder = append(s.customerOrder, r.CustomerID)
		delete(pending, r.CustomerID)
	}
	return nil
}

// AppendAddressEvents appends address changes and assigns each a sequence
// number. Exact redeliveries are dropped. It returns the number of events
// actually appended.
func (s *InMemoryStore) AppendAddressEvents(_ context.Context, events []models.AddressEvent) (int, error) {
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	appended := 0
	for _, e := range events {
		key := newAddressEventKey(e)
		if _, dup := s.eventKeys[key]; dup {
			continue
		}
		s.nextSeq++
		e.Seq = s.nextSeq
		e.InsertedAt = e.InsertedAt.UTC()
		s.events = append(s.events, e)
		s.eventKeys[key] = struct{}{}
		appended++
	}
	return appended, nil
}

// ReplacePEPEntities swaps in a complete PEP list and returns the new
// watchlist version.
func (s *InMemoryStore) ReplacePEPEntities(_ context.Context, entities []models.PEPEntity) (int64, error) {
	if err := validateUniqueEntities(entities, func(e models.PEPEntity) (id.EntityID, error) {
		return e.EntityID, e.Validate()
	}); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pep = append([]models.PEPEntity(nil), entities...)
	s.version++
	return s.version, nil
}

// ReplaceSanctionsEntities swaps in a complete sanctions list and returns
// the new watchlist version.
func (s *InMemoryStore) ReplaceSanctionsEntities(_ context.Context, entities []models.SanctionsEntity) (int64, error) {
	if err := validateUniqueEntities(entities, func(e models.SanctionsEntity) (id.EntityID, error) {
		return e.EntityID, e.Validate()
	}); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sanctions = append([]models.SanctionsEntity(nil), entities...)
	s.version++
	return s.version, nil
}

// Load returns a consistent copy of everything the store holds.
func (s *InMemoryStore) Load(ctx context.Context) (*models.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]models.CustomerRecord, 0, len(s.customerOrder))
	for _, cid := range s.customerOrder {
		customers = append(customers, s.customers[cid])
	}
	return &models.Batch{
		Customers:         customers,
		AddressEvents:     append([]models.AddressEvent(nil), s.events...),
		PEPEntities:       append([]models.PEPEntity(nil), s.pep...),
		SanctionsEntities: append([]models.SanctionsEntity(nil), s.sanctions...),
		WatchlistVersion:  s.version,
	}, nil
}

func sameCustomer(a, b models.CustomerRecord) bool {
	return a.CustomerID == b.CustomerID &&
		a.FirstName == b.FirstName &&
		a.FamilyName == b.FamilyName &&
		a.DateOfBirth.Equal(b.DateOfBirth) &&
		a.OnboardingDate.Equal(b.OnboardingDate) &&
		a.ReportingCurrency == b.ReportingCurrency &&
		a.HasAnomaly == b.HasAnomaly
}

func validateUniqueEntities[T any](entities []T, keyOf func(T) (id.EntityID, error)) error {
	seen := make(map[id.EntityID]struct{}, len(entities))
	for _, e := range entities {
		key, err := keyOf(e)
		if err != nil {
			return err
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("entity %s listed twice: %w", key, sentinel.ErrConflict)
		}
		seen[key] = struct{}{}
	}
	return nil
}
