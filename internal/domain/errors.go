package domain

import "errors"

// Closed error taxonomy surfaced to callers. Raw storage and transport
// errors are wrapped into ErrUnavailable before crossing the handler
// boundary.
var (
	// ErrInvalidInput rejects malformed tokens, non-positive TTLs and
	// similar shape problems. Never worth retrying.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound covers unknown and expired sessions alike. Expected and
	// frequent; not a server error.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is an authorization denial. It must not reveal whether
	// the underlying resource exists.
	ErrForbidden = errors.New("forbidden")

	// ErrAmbiguous means a lossy beacon reference matched more than one
	// live session; the caller must confirm with the full token or an
	// explicit session id.
	ErrAmbiguous = errors.New("ambiguous beacon reference")

	// ErrUnavailable means a systemic dependency (secure randomness,
	// storage) failed. Safe to retry after backoff.
	ErrUnavailable = errors.New("service unavailable")
)
