// Package token issues and verifies the short-lived bearer tokens handed
// out at login for step-up authentication. The middleware only needs one
// operation from it: given a token, return a contact id or reject.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "members-api"

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("token: invalid token")

// Issuer signs and verifies HS256 tokens with a process-wide secret loaded
// once at startup.
type Issuer struct {
	secret []byte
	now    func() time.Time
	ttl    time.Duration
}

// Option configures Issuer behavior.
type Option func(*Issuer)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// WithTTL overrides the default 15-minute token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// New constructs an Issuer.
func New(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: secret is required")
	}
	i := &Issuer{secret: secret, now: time.Now, ttl: 15 * time.Minute}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token whose subject is the contact id.
func (i *Issuer) Issue(contactID string) (string, time.Time, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return "", time.Time{}, errors.New("token: contact id is required")
	}
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   contactID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and claims and returns the contact id.
func (i *Issuer) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
