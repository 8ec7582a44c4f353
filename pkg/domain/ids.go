package domain

import (
	"regexp"

	"github.com/google/uuid"

	dErrors "riskwatch/pkg/domain-errors"
)

// Record keys come from upstream feeds (e.g. "CUST_00042", "PEP_000017",
// "SAN-2291"). They are opaque but must be printable, bounded, and free of
// whitespace so they can be used as storage and cache keys.
var recordKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:\-]{0,63}$`)

// CustomerID identifies a customer master record.
type CustomerID string

// EntityID identifies a watchlist entity (PEP or sanctions).
type EntityID string

// CycleID identifies one screening recompute cycle.
type CycleID uuid.UUID

// ParseCustomerID validates and returns a CustomerID.
func ParseCustomerID(s string) (CustomerID, error) {
	if !recordKeyPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid customer id")
	}
	return CustomerID(s), nil
}

// ParseEntityID validates and returns an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	if !recordKeyPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid entity id")
	}
	return EntityID(s), nil
}

// NewCycleID returns a fresh random cycle identifier.
func NewCycleID() CycleID {
	return CycleID(uuid.New())
}

// ParseCycleID validates and returns a CycleID.
func ParseCycleID(s string) (CycleID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil || parsed == uuid.Nil {
		return CycleID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid cycle id")
	}
	return CycleID(parsed), nil
}

func (id CustomerID) String() string { return string(id) }
func (id CustomerID) IsNil() bool    { return id == "" }

func (id EntityID) String() string { return string(id) }
func (id EntityID) IsNil() bool    { return id == "" }

func (id CycleID) String() string { return uuid.UUID(id).String() }
func (id CycleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the canonical UUID form so JSON and logs stay readable.
func (id CycleID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *CycleID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid cycle id")
	}
	*id = CycleID(u)
	return nil
}
