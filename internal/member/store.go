package member

import (
	"context"
	"time"
)

// Store describes persistence operations for principals and role grants.
type Store interface {
	// Find loads the contact's blocked flag along with every grant on
	// record, expired ones included. Trust is a session property and is
	// stamped by the caller.
	Find(ctx context.Context, contactID string) (*Principal, error)
	GrantsFor(ctx context.Context, contactID string) ([]Grant, error)
	CreateGrant(ctx context.Context, grant *Grant) error
	EndGrant(ctx context.Context, grantID string, on time.Time) error
}
