// Package models defines the immutable facts held by the event store: the
// customer master, address-change events, and the two watchlists.
package models

import (
	"strings"
	"time"

	id "riskwatch/pkg/domain"
	dErrors "riskwatch/pkg/domain-errors"
)

// CustomerRecord is created once per customer and never mutated.
type CustomerRecord struct {
	CustomerID        id.CustomerID `json:"customer_id"`
	FirstName         string        `json:"first_name"`
	FamilyName        string        `json:"family_name"`
	DateOfBirth       id.Date       `json:"date_of_birth"`
	OnboardingDate    id.Date       `json:"onboarding_date"`
	ReportingCurrency string        `json:"reporting_currency,omitempty"`
	HasAnomaly        bool          `json:"has_anomaly"`
}

// FullName is the "first family" concatenation screened against watchlists.
func (c CustomerRecord) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.FamilyName)
}

// Validate enforces the ingestion contract for a customer record.
func (c CustomerRecord) Validate() error {
	if c.CustomerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "customer_id is required")
	}
	if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.FamilyName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "customer name is required")
	}
	return nil
}

// AddressEvent records that a customer's address changed at InsertedAt.
// Seq is assigned by the store on append and orders events that share a
// timestamp.
type AddressEvent struct {
	Seq        int64         `json:"seq,omitempty"`
	CustomerID id.CustomerID `json:"customer_id"`
	Street     string        `json:"street"`
	City       string        `json:"city"`
	State      *string       `json:"state,omitempty"`
	Zipcode    string        `json:"zipcode"`
	Country    string        `json:"country"`
	InsertedAt time.Time     `json:"inserted_at"`
}

// Validate enforces the ingestion contract for an address event.
func (e AddressEvent) Validate() error {
	if e.CustomerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "customer_id is required")
	}
	if e.InsertedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "inserted_at is required")
	}
	return nil
}

// Address is the address payload of an event, detached from its timing.
type Address struct {
	Street  string  `json:"street"`
	City    string  `json:"city"`
	State   *string `json:"state,omitempty"`
	Zipcode string  `json:"zipcode"`
	Country string  `json:"country"`
}

// Address returns the address fields carried by the event.
func (e AddressEvent) Address() Address {
	return Address{
		Street:  e.Street,
		City:    e.City,
		State:   e.State,
		Zipcode: e.Zipcode,
		Country: e.Country,
	}
}

// WatchlistKind names the list a match was found on.
type WatchlistKind string

const (
	WatchlistPEP       WatchlistKind = "PEP"
	WatchlistSanctions WatchlistKind = "SANCTIONS"
)

// RiskLevel is the graded severity attached to a PEP entity.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

var riskLevelRank = map[RiskLevel]int{
	RiskLevelLow:      1,
	RiskLevelMedium:   2,
	RiskLevelHigh:     3,
	RiskLevelCritical: 4,
}

// Rank orders risk levels; unknown levels rank 0.
func (r RiskLevel) Rank() int {
	return riskLevelRank[r]
}

// IsValid reports whether r is one of the known levels.
func (r RiskLevel) IsValid() bool {
	_, ok := riskLevelRank[r]
	return ok
}

// PEPStatus is the lifecycle state of a PEP entry.
type PEPStatus string

const (
	PEPStatusActive   PEPStatus = "ACTIVE"
	PEPStatusInactive PEPStatus = "INACTIVE"
	PEPStatusDeceased PEPStatus = "DECEASED"
)

// PEPCategory describes why a person is politically exposed.
type PEPCategory string

const (
	PEPCategoryDomestic         PEPCategory = "DOMESTIC"
	PEPCategoryForeign          PEPCategory = "FOREIGN"
	PEPCategoryInternationalOrg PEPCategory = "INTERNATIONAL_ORG"
	PEPCategoryFamilyMember     PEPCategory = "FAMILY_MEMBER"
	PEPCategoryCloseAssociate   PEPCategory = "CLOSE_ASSOCIATE"
)

// PEPEntity is one entry of the politically-exposed-persons list.
type PEPEntity struct {
	EntityID      id.EntityID `json:"entity_id"`
	FullName      string      `json:"full_name"`
	FirstName     string      `json:"first_name,omitempty"`
	LastName      string      `json:"last_name"`
	Category      PEPCategory `json:"category"`
	RiskLevel     RiskLevel   `json:"risk_level"`
	Status        PEPStatus   `json:"status"`
	DateOfBirth   id.Date     `json:"date_of_birth,omitzero"`
	Nationality   string      `json:"nationality,omitempty"`
	PositionTitle string      `json:"position_title,omitempty"`
	Organization  string      `json:"organization,omitempty"`
	Country       string      `json:"country,omitempty"`
	StartDate     id.Date     `json:"start_date,omitzero"`
	EndDate       id.Date     `json:"end_date,omitzero"`
	ReferenceLink string      `json:"reference_link,omitempty"`
	Source        string      `json:"source,omitempty"`
}

// IsActive reports whether the entry is eligible for exact matching.
func (p PEPEntity) IsActive() bool {
	return strings.EqualFold(string(p.Status), string(PEPStatusActive))
}

// Validate enforces the minimum contract for a PEP entry. Missing name
// components are tolerated here; the matcher excludes such entries from
// the checks that need them.
func (p PEPEntity) Validate() error {
	if p.EntityID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "entity_id is required")
	}
	if strings.TrimSpace(p.FullName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "full_name is required")
	}
	return nil
}

// SanctionsEntity is one entry of a sanctions registry.
type SanctionsEntity struct {
	EntityID   id.EntityID `json:"entity_id"`
	EntityName string      `json:"entity_name"`
	EntityType string      `json:"entity_type"`
	Country    string      `json:"country"`
}

// Validate enforces the minimum contract for a sanctions entry.
func (s SanctionsEntity) Validate() error {
	if s.EntityID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "entity_id is required")
	}
	if strings.TrimSpace(s.EntityName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "entity_name is required")
	}
	return nil
}

// Batch is a consistent read of the store taken once per screening cycle.
type Batch struct {
	Customers         []CustomerRecord
	AddressEvents     []AddressEvent
	PEPEntities       []PEPEntity
	SanctionsEntities []SanctionsEntity
	// WatchlistVersion increases every time either watchlist is replaced.
	WatchlistVersion int64
}
