package store

import "errors"

var (
	// ErrInvalidInput marks input rejected before any engine interaction
	// (empty SQL, row/header length mismatch, malformed store id). Callers
	// must fix the input rather than retry.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a store id has no backing file.
	ErrNotFound = errors.New("dataset store not found")

	// ErrCreateFailed wraps any failure while building a store. No partial
	// store is left behind when it is returned.
	ErrCreateFailed = errors.New("dataset store creation failed")
)
