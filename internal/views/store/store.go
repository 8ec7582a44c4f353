// Package store holds the output views. A cycle publishes a complete
// ViewSet that replaces the previous one atomically; readers always see
// one whole cycle, never a mix.
package store

import (
	"context"
	_ "embed"

	"riskwatch/internal/views/models"
	id "riskwatch/pkg/domain"
)

//go:embed schema.sql
var Schema string

// Publisher replaces all views in one step.
type Publisher interface {
	Replace(ctx context.Context, set *models.ViewSet) error
}

// Reader serves the reporting layer. Missing rows return
// sentinel.ErrNotFound.
type Reader interface {
	CurrentAddress(ctx context.Context, cid id.CustomerID) (models.AddressRow, error)
	AddressHistory(ctx context.Context, cid id.CustomerID) ([]models.AddressRow, error)
	RiskProfile(ctx context.Context, cid id.CustomerID) (models.RiskProfile, error)
	ListRiskProfiles(ctx context.Context, filter models.Filter) ([]models.RiskProfile, error)
	LatestCycle(ctx context.Context) (models.CycleReport, error)
}

// Store is both sides.
type Store interface {
	Publisher
	Reader
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*RedisStore)(nil)
)
