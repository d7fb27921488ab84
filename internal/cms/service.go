package cms

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"peterboroughtenants.org/internal/member"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Service provides page operations. Pages loaded through it carry the
// shared permission evaluator and clock so guards and Status agree with
// the rest of the system.
type Service struct {
	store Store
	eval  *member.Evaluator
	now   func() time.Time
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, eval *member.Evaluator, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cms: store is required")
	}
	if eval == nil {
		eval = member.NewEvaluator()
	}
	s := &Service{store: store, eval: eval, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) attach(p *Page) *Page {
	if p == nil {
		return nil
	}
	p.eval = s.eval
	p.now = s.now
	return p
}

func (s *Service) Get(ctx context.Context, slug string) (*Page, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}
	p, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.attach(p), nil
}

// List returns pages in a category. Admin listings include drafts,
// scheduled and archived pages; everyone else gets published pages only.
func (s *Service) List(ctx context.Context, category string, p *member.Principal) ([]*Page, error) {
	admin := member.Allowed(s.eval.HasRole(p, member.RoleGlobalAdmin, nil))
	pages, err := s.store.List(ctx, strings.TrimSpace(category), !admin)
	if err != nil {
		return nil, err
	}
	for _, pg := range pages {
		s.attach(pg)
	}
	return pages, nil
}

func (s *Service) validate(p *Page) error {
	if p == nil {
		return fmt.Errorf("%w: page is required", ErrInvalidInput)
	}
	p.Slug = strings.TrimSpace(p.Slug)
	p.Title = strings.TrimSpace(p.Title)
	if !slugPattern.MatchString(p.Slug) {
		return fmt.Errorf("%w: slug must be lowercase words joined by hyphens", ErrInvalidInput)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Page) (*Page, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.attach(p), nil
}

func (s *Service) Update(ctx context.Context, p *Page) (*Page, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.attach(p), nil
}
