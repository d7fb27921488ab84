package directory

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrInvalidInput = errors.New("directory: invalid input")
	// ErrUnauthorized covers bad credentials and blocked accounts alike, so
	// responses cannot distinguish the two.
	ErrUnauthorized = errors.New("directory: unauthorized")
)

// Store describes persistence for contacts and their email addresses.
type Store interface {
	Find(ctx context.Context, id string) (*Contact, error)
	FindByEmail(ctx context.Context, email string) (*Contact, error)
	List(ctx context.Context, limit int) ([]*Contact, error)
	Create(ctx context.Context, c *Contact) error
	UpdatePassword(ctx context.Context, contactID, passwordHash string) error
	EmailsFor(ctx context.Context, contactID string) ([]*EmailAddress, error)
}
