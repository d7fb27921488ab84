package session

import "context"

// Store describes persistence for sessions and the request ledger.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	FindSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string) error
	EntrustSession(ctx context.Context, id, contactID string) error
	DeleteSession(ctx context.Context, id string) error
	// DeleteSessionsForContact removes every session linked to the contact,
	// the caller's current one included.
	DeleteSessionsForContact(ctx context.Context, contactID string) (int64, error)
	// LatestMatchingSession finds the contact's most recently used session
	// with the same fingerprint, source and remote address, for reuse at
	// login.
	LatestMatchingSession(ctx context.Context, contactID, uaHash, source, remoteAddr string) (*Session, error)

	CreateRequest(ctx context.Context, r *Request) error
	FinishRequest(ctx context.Context, r *Request) error
	SetReturnHash(ctx context.Context, requestID, hash string) error
	// RecentReturnHashes returns the newest issued hashes for the session,
	// most recent first, at most limit entries.
	RecentReturnHashes(ctx context.Context, sessionID string, limit int) ([]string, error)
}
