package engine

import "errors"

// Registry lookup failures are ordinary, recoverable result values —
// nothing in this package terminates the process.
var (
	// ErrNotFound is returned for operations on an absent oscillator id.
	ErrNotFound = errors.New("oscillator not found")

	// ErrAlreadyExists is returned when creating with an explicit id that
	// is already registered. The registry never silently overwrites.
	ErrAlreadyExists = errors.New("oscillator already exists")
)
