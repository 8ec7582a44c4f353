package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: an immutable record with the same key already exists
//   - ErrInvalidState: the store is not in a state that allows the operation
//   - ErrUnavailable: a backing system is temporarily unavailable
//   - ErrIncompleteBatch: a snapshot batch arrived without all of its parts
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnavailable     = errors.New("unavailable")
	ErrIncompleteBatch = errors.New("incomplete batch")
)
