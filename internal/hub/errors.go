package hub

import "errors"

// Dispatch outcome taxonomy. Handlers map collaborator failures onto
// these so the dispatchers can decide between silent drops (default
// channel) and structured error replies (lecture channel).
var (
	// ErrUnauthorized rejects a handshake. No connection is created.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden marks a scope or role mismatch. Dropped silently so
	// a sender can never probe whether a peer exists.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing record (lecture, roster entry).
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a generation collaborator failure.
	ErrUnavailable = errors.New("service unavailable")
)
