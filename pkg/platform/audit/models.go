package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "riskwatch/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores
// and sinks can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: review
	// flags raised by screening and the outcome of every cycle that produced
	// them. These need durable, long-retention storage.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	// Screening cycle events
	EventCycleCompleted         AuditEvent = "cycle_completed"
	EventCycleFailed            AuditEvent = "cycle_failed"
	EventCustomerReviewRequired AuditEvent = "customer_review_required"

	// Ingestion events
	EventWatchlistRefreshed AuditEvent = "watchlist_refreshed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCycleCompleted:         CategoryCompliance,
	EventCycleFailed:            CategoryCompliance,
	EventCustomerReviewRequired: CategoryCompliance,
	EventWatchlistRefreshed:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is the stored form of every audit record.
type Event struct {
	ID        uuid.UUID     `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	CycleID   id.CycleID    `json:"cycle_id"`
	// Subject is the customer the event concerns, or empty for cycle-level
	// events.
	Subject  string `json:"subject,omitempty"`
	Action   string `json:"action"`
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ComplianceEvent captures a regulatory-significant screening outcome.
type ComplianceEvent struct {
	Timestamp time.Time  // set automatically if zero
	CycleID   id.CycleID // the cycle that produced the outcome (required)
	Subject   string     // customer_id for per-customer events
	Action    string     // e.g. "customer_review_required"
	Decision  string     // overall rating or cycle outcome
	Reason    string     // rule reason or failure stage
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the stored Event form with a fresh ID.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		ID:        uuid.New(),
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		CycleID:   e.CycleID,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
	}
}

// Store persists audit events. Append is all-or-nothing for the events
// passed in one call.
type Store interface {
	Append(ctx context.Context, events ...Event) error
}
