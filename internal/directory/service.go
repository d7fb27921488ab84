package directory

import (
	"context"
	"fmt"
	"strings"

	"peterboroughtenants.org/internal/member"
)

// Service provides the contact operations handlers rely on. Loaded entities
// carry the shared permission evaluator so their guards can answer role
// checks.
type Service struct {
	store Store
	eval  *member.Evaluator
}

func NewService(store Store, eval *member.Evaluator) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("directory: store is required")
	}
	if eval == nil {
		eval = member.NewEvaluator()
	}
	return &Service{store: store, eval: eval}, nil
}

func (s *Service) attach(c *Contact) *Contact {
	if c == nil {
		return nil
	}
	c.eval = s.eval
	for _, e := range c.Emails {
		e.eval = s.eval
	}
	return c
}

func (s *Service) Get(ctx context.Context, id string) (*Contact, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: contact id is required", ErrInvalidInput)
	}
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.attach(c), nil
}

func (s *Service) List(ctx context.Context, limit int) ([]*Contact, error) {
	contacts, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		s.attach(c)
	}
	return contacts, nil
}

// Create registers a new contact. The password is optional; contacts
// without one cannot log in until an administrator sets it.
func (s *Service) Create(ctx context.Context, c *Contact, password string) (*Contact, error) {
	if c == nil || strings.TrimSpace(c.GivenName) == "" || strings.TrimSpace(c.FamilyName) == "" {
		return nil, fmt.Errorf("%w: given and family names are required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(c.PreferredEmail))
	if email != "" && !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	c.PreferredEmail = email
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		c.PasswordHash = hash
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.attach(c), nil
}

// Authenticate verifies login credentials. Failures are indistinguishable
// to the caller: wrong email, wrong password and blocked account all come
// back ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Contact, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	c, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if c.PasswordHash == "" || c.Blocked {
		return nil, ErrUnauthorized
	}
	if err := VerifyPassword(c.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	return s.attach(c), nil
}

// CheckPassword verifies the contact's current password, for step-up
// confirmation before sensitive changes.
func (s *Service) CheckPassword(ctx context.Context, contactID, password string) error {
	c, err := s.store.Find(ctx, contactID)
	if err != nil {
		return err
	}
	if c.PasswordHash == "" || password == "" {
		return ErrUnauthorized
	}
	if err := VerifyPassword(c.PasswordHash, password); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// ChangePassword rehashes and stores a new password.
func (s *Service) ChangePassword(ctx context.Context, contactID, newPassword string) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return fmt.Errorf("%w: contact id is required", ErrInvalidInput)
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, contactID, hash)
}
