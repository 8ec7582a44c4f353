package screening

import (
	"context"

	"riskwatch/internal/eventstore/models"
	vmodels "riskwatch/internal/views/models"
	audit "riskwatch/pkg/platform/audit"
)

// EventSource provides a consistent read of every input fact.
type EventSource interface {
	Load(ctx context.Context) (*models.Batch, error)
}

// ViewPublisher atomically replaces the published views.
type ViewPublisher interface {
	Replace(ctx context.Context, set *vmodels.ViewSet) error
}

// AuditPublisher records compliance events with fail-closed semantics.
type AuditPublisher interface {
	Emit(ctx context.Context, events ...audit.ComplianceEvent) error
}
