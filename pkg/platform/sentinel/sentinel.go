package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) so
// services can translate them into coded domain errors.
//
//   - ErrNotFound: row does not exist
//   - ErrAlreadyUsed: a unique natural key is already taken
//   - ErrReferenced: the row is still referenced by dependent rows
//   - ErrDangling: a foreign key points at a row that does not exist
//   - ErrUnavailable: backing store temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrReferenced  = errors.New("still referenced")
	ErrDangling    = errors.New("dangling reference")
	ErrUnavailable = errors.New("unavailable")
)
