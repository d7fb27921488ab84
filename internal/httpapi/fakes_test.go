package httpapi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"peterboroughtenants.org/internal/cms"
	"peterboroughtenants.org/internal/directory"
	"peterboroughtenants.org/internal/member"
	"peterboroughtenants.org/internal/org"
	"peterboroughtenants.org/internal/session"
)

// memSessionStore is an in-memory session.Store for exercising the full
// request flow without a database.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	requests map[string]*session.Request
	hashes   map[string][]string // session id -> issued hashes, newest first
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions: map[string]*session.Session{},
		requests: map[string]*session.Request{},
		hashes:   map[string][]string{},
	}
}

func (m *memSessionStore) CreateSession(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) FindSession(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) TouchSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastUsed = time.Now().UTC()
	}
	return nil
}

func (m *memSessionStore) EntrustSession(_ context.Context, id, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	s.Trusted = true
	s.ContactID = contactID
	return nil
}

func (m *memSessionStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionStore) DeleteSessionsForContact(_ context.Context, contactID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.ContactID == contactID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) LatestMatchingSession(_ context.Context, contactID, uaHash, source, remoteAddr string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *session.Session
	for _, s := range m.sessions {
		if s.ContactID != contactID || s.UserAgentHash != uaHash ||
			s.Source != source || s.RemoteAddr != remoteAddr {
			continue
		}
		if best == nil || s.LastUsed.After(best.LastUsed) {
			best = s
		}
	}
	if best == nil {
		return nil, session.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memSessionStore) CreateRequest(_ context.Context, r *session.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memSessionStore) FinishRequest(_ context.Context, r *session.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.requests[r.ID]; ok {
		stored.Finished = r.Finished
		stored.Duration = r.Duration
		stored.ResponseCode = r.ResponseCode
	}
	return nil
}

func (m *memSessionStore) SetReturnHash(_ context.Context, requestID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return session.ErrNotFound
	}
	r.ReturnHash = hash
	m.hashes[r.SessionID] = append([]string{hash}, m.hashes[r.SessionID]...)
	return nil
}

func (m *memSessionStore) RecentReturnHashes(_ context.Context, sessionID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hashes := m.hashes[sessionID]
	if len(hashes) > limit {
		hashes = hashes[:limit]
	}
	out := make([]string, len(hashes))
	copy(out, hashes)
	return out, nil
}

func (m *memSessionStore) finishedCodes(sessionID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reqs []*session.Request
	for _, r := range m.requests {
		if r.SessionID == sessionID {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Started.Before(reqs[j].Started) })
	codes := make([]int, 0, len(reqs))
	for _, r := range reqs {
		codes = append(codes, r.ResponseCode)
	}
	return codes
}

// memMemberStore serves principals and grants from memory.
type memMemberStore struct {
	mu     sync.Mutex
	grants map[string][]member.Grant
	known  map[string]bool
}

func newMemMemberStore() *memMemberStore {
	return &memMemberStore{grants: map[string][]member.Grant{}, known: map[string]bool{}}
}

func (m *memMemberStore) add(contactID string, grants ...member.Grant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[contactID] = true
	m.grants[contactID] = append(m.grants[contactID], grants...)
}

func (m *memMemberStore) Find(_ context.Context, contactID string) (*member.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[contactID] {
		return nil, member.ErrNotFound
	}
	return &member.Principal{ID: contactID, Grants: m.grants[contactID]}, nil
}

func (m *memMemberStore) GrantsFor(_ context.Context, contactID string) ([]member.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants[contactID], nil
}

func (m *memMemberStore) CreateGrant(_ context.Context, g *member.Grant) error {
	m.add(g.ContactID, *g)
	return nil
}

func (m *memMemberStore) EndGrant(_ context.Context, grantID string, on time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, grants := range m.grants {
		for i := range grants {
			if grants[i].ID == grantID {
				grants[i].EndsOn = on
			}
		}
	}
	return nil
}

// memDirStore is an in-memory directory.Store.
type memDirStore struct {
	mu       sync.Mutex
	contacts map[string]*directory.Contact
}

func newMemDirStore() *memDirStore {
	return &memDirStore{contacts: map[string]*directory.Contact{}}
}

func (m *memDirStore) Find(_ context.Context, id string) (*directory.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memDirStore) FindByEmail(_ context.Context, email string) (*directory.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if strings.EqualFold(c.PreferredEmail, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, directory.ErrNotFound
}

func (m *memDirStore) List(_ context.Context, _ int) ([]*directory.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*directory.Contact
	for _, c := range m.contacts {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDirStore) Create(_ context.Context, c *directory.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = "contact-" + time.Now().Format("150405.000000000")
	}
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memDirStore) UpdatePassword(_ context.Context, contactID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[contactID]
	if !ok {
		return directory.ErrNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

func (m *memDirStore) EmailsFor(_ context.Context, _ string) ([]*directory.EmailAddress, error) {
	return nil, nil
}

// memPageStore is an in-memory cms.Store.
type memPageStore struct {
	mu    sync.Mutex
	pages map[string]*cms.Page
}

func newMemPageStore() *memPageStore {
	return &memPageStore{pages: map[string]*cms.Page{}}
}

func (m *memPageStore) FindBySlug(_ context.Context, slug string) (*cms.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[slug]
	if !ok {
		return nil, cms.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPageStore) List(_ context.Context, category string, publishedOnly bool) ([]*cms.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*cms.Page
	for _, p := range m.pages {
		if category != "" && p.Category != category {
			continue
		}
		if publishedOnly && (p.Archived || p.PublishOn.IsZero() || p.PublishOn.After(time.Now())) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *memPageStore) Create(_ context.Context, p *cms.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pages[p.Slug]; exists {
		return cms.ErrDuplicate
	}
	if p.ID == "" {
		p.ID = "page-" + p.Slug
	}
	cp := *p
	m.pages[p.Slug] = &cp
	return nil
}

func (m *memPageStore) Update(_ context.Context, p *cms.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[p.Slug]; !ok {
		return cms.ErrNotFound
	}
	cp := *p
	m.pages[p.Slug] = &cp
	return nil
}

// memOrgStore is an in-memory org.Store.
type memOrgStore struct {
	branches   map[string]*org.Branch
	committees map[string]*org.Committee
}

func newMemOrgStore() *memOrgStore {
	return &memOrgStore{branches: map[string]*org.Branch{}, committees: map[string]*org.Committee{}}
}

func (m *memOrgStore) FindBranch(_ context.Context, id string) (*org.Branch, error) {
	b, ok := m.branches[id]
	if !ok {
		return nil, org.ErrNotFound
	}
	return b, nil
}

func (m *memOrgStore) ListBranches(_ context.Context) ([]*org.Branch, error) {
	var out []*org.Branch
	for _, b := range m.branches {
		out = append(out, b)
	}
	return out, nil
}

func (m *memOrgStore) FindCommittee(_ context.Context, id string) (*org.Committee, error) {
	c, ok := m.committees[id]
	if !ok {
		return nil, org.ErrNotFound
	}
	return c, nil
}

func (m *memOrgStore) ListCommittees(_ context.Context, branchID string) ([]*org.Committee, error) {
	var out []*org.Committee
	for _, c := range m.committees {
		if branchID == "" || c.BranchID == branchID {
			out = append(out, c)
		}
	}
	return out, nil
}
