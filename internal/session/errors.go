package session

import "errors"

var (
	// ErrUnauthenticated covers every validation failure: missing or unknown
	// session, fingerprint mismatch, expired session, stale client hash.
	// Responses carry a generic message; the specific reason is only logged.
	ErrUnauthenticated = errors.New("session: unauthenticated")

	ErrNotFound = errors.New("session: not found")
)
