// Package store persists the append-only facts the screening cycle reads:
// customer master records, address-change events and the watchlists.
package store

import (
	"context"
	_ "embed"

	"riskwatch/internal/eventstore/models"
)

//go:embed schema.sql
var schemaSQL string

// Store is implemented by every event store backend.
type Store interface {
	AppendCustomers(ctx context.Context, records []models.CustomerRecord) error
	AppendAddressEvents(ctx context.Context, events []models.AddressEvent) (int, error)
	ReplacePEPEntities(ctx context.Context, entities []models.PEPEntity) (int64, error)
	ReplaceSanctionsEntities(ctx context.Context, entities []models.SanctionsEntity) (int64, error)
	Load(ctx context.Context) (*models.Batch, error)
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
