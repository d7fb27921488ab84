package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peterboroughtenants.org/internal/cms"
	"peterboroughtenants.org/internal/directory"
	"peterboroughtenants.org/internal/member"
	"peterboroughtenants.org/internal/session"
	"peterboroughtenants.org/internal/token"
)

type testEnv struct {
	handler  http.Handler
	sessions *memSessionStore
	members  *memMemberStore
	dir      *memDirStore
	pages    *memPageStore
	tokens   *token.Issuer
}

func newTestEnv(t *testing.T, opts ...session.Option) *testEnv {
	t.Helper()
	secret := []byte("unit-test-secret")

	sessions := newMemSessionStore()
	svc, err := session.NewService(sessions, secret, opts...)
	require.NoError(t, err)

	tokens, err := token.New(secret)
	require.NoError(t, err)

	eval := member.NewEvaluator()
	members := newMemMemberStore()
	dir := newMemDirStore()
	contacts, err := directory.NewService(dir, eval)
	require.NoError(t, err)

	pageStore := newMemPageStore()
	pages, err := cms.NewService(pageStore, eval)
	require.NoError(t, err)

	api := New(Config{Version: "test", DevMode: true}, Deps{
		Sessions: svc,
		Tokens:   tokens,
		Members:  members,
		Eval:     eval,
		Contacts: contacts,
		Pages:    pages,
		Units:    newMemOrgStore(),
	})
	return &testEnv{
		handler:  api.Handler(),
		sessions: sessions,
		members:  members,
		dir:      dir,
		pages:    pageStore,
		tokens:   tokens,
	}
}

func (e *testEnv) seedContact(t *testing.T, id, email, password string) {
	t.Helper()
	hash, err := directory.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, e.dir.Create(nil, &directory.Contact{
		ID: id, GivenName: "Sam", FamilyName: "Byrne",
		PreferredEmail: email, PasswordHash: hash,
	}))
	e.members.add(id)
}

// apiClient replays the browser side of the correlation protocol: it keeps
// the session cookie and echoes the last issued X-Client-Id.
type apiClient struct {
	t       *testing.T
	handler http.Handler
	ua      string
	cookie  string
	hash    string
	bearer  string
}

func newClient(t *testing.T, e *testEnv) *apiClient {
	return &apiClient{t: t, handler: e.handler, ua: "test-browser/1.0"}
}

func (c *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "http://members.test"+path, reader)
	req.RemoteAddr = "10.1.2.3:51234"
	req.Header.Set("User-Agent", c.ua)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.cookie})
	}
	if c.hash != "" {
		req.Header.Set(HeaderClientID, c.hash)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck.Value
		}
	}
	if h := rec.Header().Get(HeaderClientID); h != "" {
		c.hash = h
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBootstrapIssuesSessionAndHash(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t, env)

	rec := c.do(http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, c.cookie, "session cookie must be set")
	assert.NotEmpty(t, rec.Header().Get(HeaderClientID), "bootstrap must issue a correlation hash")

	body := decodeBody(t, rec)
	assert.Equal(t, c.cookie, body["session"])
	assert.Equal(t, false, body["trusted"])
}

func TestValidatedRequestRotatesHash(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", nil)
	first := c.hash

	rec := c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, c.hash)
	assert.NotEqual(t, first, c.hash, "every validated response carries a fresh hash")
}

func TestMissingCorrelationHeaderRejectedWithoutRotation(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", nil)
	c.hash = ""

	rec := c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderClientID), "a 401 must never rotate the hash")
	assert.Empty(t, rec.Header().Get(HeaderDevMessage))
}

func TestFingerprintMismatchRejected(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", nil)

	c.ua = "different-browser/9.9"
	rec := c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderClientID))

	body := decodeBody(t, rec)
	assert.Equal(t, "authentication required", body["error"],
		"rejections carry a generic message regardless of cause")
}

func TestHashLookbackWindow(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", nil)
	oldest := c.hash

	// Two more rotations leave the bootstrap hash inside the lookback of 3.
	c.do(http.MethodGet, "/pages", nil)
	c.do(http.MethodGet, "/pages", nil)

	c.hash = oldest
	rec := c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusOK, rec.Code, "a hash within the lookback window is still valid")

	// That response plus one more push the bootstrap hash out of the window.
	c.do(http.MethodGet, "/pages", nil)

	c.hash = oldest
	rec = c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "an expired hash is rejected")
}

func TestHashFromAnotherSessionRejected(t *testing.T) {
	env := newTestEnv(t)
	a := newClient(t, env)
	b := newClient(t, env)
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/session", nil).Code)
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/session", nil).Code)

	// A hash issued to one session proves nothing about another.
	b.hash = a.hash
	rec := b.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderClientID), "a 401 must never rotate the hash")

	body := decodeBody(t, rec)
	assert.Equal(t, "authentication required", body["error"])

	// The session the hash was issued to still validates with it.
	rec = a.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginEntrustsSessionAndIssuesToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "c1", "sam@example.com", "a-long-password")
	c := newClient(t, env)

	rec := c.do(http.MethodPost, "/session", map[string]string{
		"email": "sam@example.com", "password": "a-long-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["trusted"])
	assert.NotEmpty(t, body["token"])

	// Trusted member sees the directory.
	rec = c.do(http.MethodGet, "/contacts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Sam Byrne", list[0]["name"])
}

func TestLoginFailureIsGenericAndUnsessioned(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "c1", "sam@example.com", "a-long-password")
	c := newClient(t, env)

	rec := c.do(http.MethodPost, "/session", map[string]string{
		"email": "sam@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, c.cookie)
	assert.Empty(t, rec.Header().Get(HeaderClientID))
}

func TestBearerTokenMustMatchSessionContact(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "c1", "sam@example.com", "a-long-password")
	env.members.add("c2")
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", map[string]string{
		"email": "sam@example.com", "password": "a-long-password",
	})

	other, _, err := env.tokens.Issue("c2")
	require.NoError(t, err)
	c.bearer = other

	rec := c.do(http.MethodGet, "/contacts", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderClientID))
}

func TestPasswordChangeClearsEverySession(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "c1", "sam@example.com", "a-long-password")
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", map[string]string{
		"email": "sam@example.com", "password": "a-long-password",
	})

	rec := c.do(http.MethodPost, "/contacts/c1/password", map[string]string{
		"current_password": "a-long-password",
		"new_password":     "an-even-longer-password",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The session that made the change is gone too.
	rec = c.do(http.MethodGet, "/contacts", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The new credentials work.
	rec = c.do(http.MethodPost, "/session", map[string]string{
		"email": "sam@example.com", "password": "an-even-longer-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestPasswordChangeRequiresCurrentPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "c1", "sam@example.com", "a-long-password")
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", map[string]string{
		"email": "sam@example.com", "password": "a-long-password",
	})

	rec := c.do(http.MethodPost, "/contacts/c1/password", map[string]string{
		"current_password": "wrong",
		"new_password":     "an-even-longer-password",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSoftFailModeAttachesDiagnosticHeader(t *testing.T) {
	env := newTestEnv(t, session.WithSoftFail(true))
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", nil)

	c.hash = "not-a-hash-we-issued"
	rec := c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderDevMessage))
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t, env)
	c.do(http.MethodPost, "/session", nil)
	sessionID := c.cookie

	rec := c.do(http.MethodDelete, "/session", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	c.cookie = sessionID
	rec = c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUntrustedSessionSeesOnlyPublishedPages(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.pages.Create(nil, &cms.Page{
		Slug: "join-us", Title: "Join us", PublishOn: timePast(),
	}))
	require.NoError(t, env.pages.Create(nil, &cms.Page{
		Slug: "internal-draft", Title: "Draft",
	}))

	c := newClient(t, env)
	c.do(http.MethodPost, "/session", nil)

	rec := c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "join-us", list[0]["slug"])
}

func timePast() time.Time {
	return time.Now().Add(-time.Hour)
}

func TestUnknownSessionRejected(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t, env)
	c.cookie = "never-issued"
	c.hash = "never-issued-either"

	rec := c.do(http.MethodGet, "/pages", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderClientID))
}
