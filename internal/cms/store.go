package cms

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("cms: page not found")
	ErrInvalidInput = errors.New("cms: invalid input")
	ErrDuplicate    = errors.New("cms: slug already in use")
)

// Store describes page persistence.
type Store interface {
	FindBySlug(ctx context.Context, slug string) (*Page, error)
	List(ctx context.Context, category string, publishedOnly bool) ([]*Page, error)
	Create(ctx context.Context, p *Page) error
	Update(ctx context.Context, p *Page) error
}
