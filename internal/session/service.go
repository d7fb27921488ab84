package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"peterboroughtenants.org/internal/ids"
)

const (
	defaultMaxAge   = 12 * 7 * 24 * time.Hour
	defaultMaxIdle  = 7 * 24 * time.Hour
	defaultLookback = 3
)

// Service establishes and polices the association between a request and a
// session. Correlation hashes are validated against the last N issued for
// the session (lookback count, not a time window).
type Service struct {
	store    Store
	secret   []byte
	now      func() time.Time
	maxAge   time.Duration
	maxIdle  time.Duration
	lookback int
	softFail bool
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithMaxAge sets the hard ceiling on session age.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithMaxIdle sets the inactivity ceiling.
func WithMaxIdle(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxIdle = d
		}
	}
}

// WithLookback sets how many issued hashes remain acceptable.
func WithLookback(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lookback = n
		}
	}
}

// WithSoftFail keeps requests with a stale client hash alive and reports the
// mismatch via a diagnostic header instead. Development environments only.
func WithSoftFail(enabled bool) Option {
	return func(s *Service) { s.softFail = enabled }
}

// NewService constructs a Service. The secret keys both the device
// fingerprint and the correlation hashes; it is loaded once at startup.
func NewService(store Store, secret []byte, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("session: secret is required")
	}
	svc := &Service{
		store:    store,
		secret:   secret,
		now:      time.Now,
		maxAge:   defaultMaxAge,
		maxIdle:  defaultMaxIdle,
		lookback: defaultLookback,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Fingerprint exposes the keyed user-agent hash for callers that need to
// match sessions (login reuse).
func (s *Service) Fingerprint(userAgent string) string {
	return Fingerprint(s.secret, userAgent)
}

// ClientInfo carries the request attributes a session is validated against.
type ClientInfo struct {
	UserAgent  string
	Host       string
	RemoteAddr string
	Path       string
	Method     string
}

// Establish creates a brand-new untrusted session for the client.
func (s *Service) Establish(ctx context.Context, info ClientInfo) (*Session, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:            uuid.NewString(),
		UserAgentHash: Fingerprint(s.secret, info.UserAgent),
		RemoteAddr:    info.RemoteAddr,
		Source:        info.Host,
		Created:       now,
		LastUsed:      now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ResumeOrEstablish reuses the contact's most recent session matching the
// client's fingerprint, source and address, or creates a new one.
func (s *Service) ResumeOrEstablish(ctx context.Context, contactID string, info ClientInfo) (*Session, error) {
	existing, err := s.store.LatestMatchingSession(ctx, contactID,
		Fingerprint(s.secret, info.UserAgent), info.Host, info.RemoteAddr)
	if err == nil && existing != nil {
		return existing, nil
	}
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	return s.Establish(ctx, info)
}

// Entrust marks the session as step-up verified and links the contact.
func (s *Service) Entrust(ctx context.Context, sess *Session, contactID string) error {
	if err := s.store.EntrustSession(ctx, sess.ID, contactID); err != nil {
		return err
	}
	sess.Trusted = true
	sess.ContactID = contactID
	return nil
}

// OpenRequest appends the ledger entry for a request already bound to a
// session.
func (s *Service) OpenRequest(ctx context.Context, sess *Session, info ClientInfo) (*Request, error) {
	req := &Request{
		ID:        ids.New(),
		SessionID: sess.ID,
		Started:   s.now().UTC(),
		Host:      info.Host,
		Path:      info.Path,
		Method:    info.Method,
		Trusted:   sess.Trusted,
		ContactID: sess.ContactID,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// AuthResult is what a validated request carries forward: the session, its
// ledger entry, and whether the correlation hash checked out (false only in
// soft-fail mode).
type AuthResult struct {
	Session *Session
	Request *Request
	HashOK  bool
}

// Authenticate runs the full request validation sequence. Any failure is
// ErrUnauthenticated; the wrapped reason is for logs, never for responses.
// On a strict hash failure the result still carries the ledger entry so the
// caller can finalize it with the rejection code.
func (s *Service) Authenticate(ctx context.Context, sessionID, clientHash string, info ClientInfo) (*AuthResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrUnauthenticated)
	}
	if clientHash == "" {
		return nil, fmt.Errorf("%w: missing client hash", ErrUnauthenticated)
	}

	sess, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		if err == ErrNotFound {
			return nil, fmt.Errorf("%w: unknown session", ErrUnauthenticated)
		}
		return nil, err
	}

	if sess.UserAgentHash != Fingerprint(s.secret, info.UserAgent) ||
		sess.Source != info.Host ||
		sess.RemoteAddr != info.RemoteAddr {
		return nil, fmt.Errorf("%w: session mismatch", ErrUnauthenticated)
	}

	now := s.now().UTC()
	if !sess.Created.IsZero() && now.Sub(sess.Created) > s.maxAge {
		return nil, fmt.Errorf("%w: session expired", ErrUnauthenticated)
	}
	if !sess.LastUsed.IsZero() && now.Sub(sess.LastUsed) > s.maxIdle {
		return nil, fmt.Errorf("%w: session idle too long", ErrUnauthenticated)
	}

	req, err := s.OpenRequest(ctx, sess, info)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchSession(ctx, sess.ID); err != nil {
		return nil, err
	}

	result := &AuthResult{Session: sess, Request: req, HashOK: true}

	ok, err := s.validateClientHash(ctx, sess.ID, clientHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if s.softFail {
			result.HashOK = false
			return result, nil
		}
		return result, fmt.Errorf("%w: client hash mismatch", ErrUnauthenticated)
	}
	return result, nil
}

func (s *Service) validateClientHash(ctx context.Context, sessionID, clientHash string) (bool, error) {
	hashes, err := s.store.RecentReturnHashes(ctx, sessionID, s.lookback)
	if err != nil {
		return false, err
	}
	for _, h := range hashes {
		if h == clientHash {
			return true, nil
		}
	}
	return false, nil
}

// RotateHash issues a fresh correlation hash, persists it on the ledger
// entry and returns it for the response header. Callers must not rotate on
// a 401 response.
func (s *Service) RotateHash(ctx context.Context, req *Request) (string, error) {
	hash, err := newReturnHash(s.secret)
	if err != nil {
		return "", err
	}
	if err := s.store.SetReturnHash(ctx, req.ID, hash); err != nil {
		return "", err
	}
	req.ReturnHash = hash
	return hash, nil
}

// FinishRequest closes the ledger entry with the final response code.
func (s *Service) FinishRequest(ctx context.Context, req *Request, code int) error {
	req.End(code, s.now().UTC())
	return s.store.FinishRequest(ctx, req)
}

// ClearSessions deletes every session belonging to the contact, including
// the one the request arrived on. Triggered after password changes.
func (s *Service) ClearSessions(ctx context.Context, contactID string) (int64, error) {
	return s.store.DeleteSessionsForContact(ctx, contactID)
}

// Logout removes a single session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}
