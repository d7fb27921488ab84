package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"peterboroughtenants.org/internal/cms"
	"peterboroughtenants.org/internal/directory"
	"peterboroughtenants.org/internal/member"
	"peterboroughtenants.org/internal/notify"
	"peterboroughtenants.org/internal/obs"
	"peterboroughtenants.org/internal/org"
	"peterboroughtenants.org/internal/session"
	"peterboroughtenants.org/internal/token"
)

// ReadyProbe answers the readiness check, typically with a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Mailer schedules outbound email. Delivery is fire and forget relative to
// the request that triggered it.
type Mailer interface {
	Enqueue(ctx context.Context, m *notify.Message) error
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Sessions *session.Service
	Tokens   *token.Issuer
	Members  member.Store
	Eval     *member.Evaluator
	Contacts *directory.Service
	Pages    *cms.Service
	Units    org.Store
	Mail     Mailer // optional
	Ready    ReadyProbe
}

// Config carries environment-dependent switches.
type Config struct {
	Version       string
	DevMode       bool
	SecureCookies bool
	CORSOrigins   []string
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	gate *SessionGate
	deps Deps
	cfg  Config
}

func New(cfg Config, deps Deps) *API {
	a := &API{
		mux:  http.NewServeMux(),
		gate: NewSessionGate(deps.Sessions, deps.Tokens, deps.Members, cfg.DevMode),
		deps: deps,
		cfg:  cfg,
	}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /session", a.handleSessionCreate)
	a.mux.HandleFunc("DELETE /session", a.handleSessionDelete)

	a.mux.HandleFunc("GET /contacts", a.handleContactList)
	a.mux.HandleFunc("POST /contacts", a.handleContactCreate)
	a.mux.HandleFunc("GET /contacts/{id}", a.handleContactGet)
	a.mux.HandleFunc("POST /contacts/{id}/password", a.handlePasswordChange)

	a.mux.HandleFunc("GET /pages", a.handlePageList)
	a.mux.HandleFunc("POST /pages", a.handlePageCreate)
	a.mux.HandleFunc("GET /pages/{slug}", a.handlePageGet)
	a.mux.HandleFunc("PUT /pages/{slug}", a.handlePageUpdate)

	a.mux.HandleFunc("GET /branches", a.handleBranchList)
	a.mux.HandleFunc("GET /branches/{id}", a.handleBranchGet)
	a.mux.HandleFunc("GET /committees", a.handleCommitteeList)
	a.mux.HandleFunc("GET /committees/{id}", a.handleCommitteeGet)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.gate.Middleware(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 30, 10)
	h = CORS(h, a.cfg.CORSOrigins)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "members-api",
		"version": a.cfg.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "members-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.cfg.Version,
	})
}

// notifyContact enqueues a templated email if both the mailer and a
// deliverable address exist. Failures are logged, never surfaced.
func (a *API) notifyContact(ctx context.Context, c *directory.Contact, subject, template string, data map[string]string) {
	if a.deps.Mail == nil || c == nil || c.PreferredEmail == "" {
		return
	}
	msg := &notify.Message{
		To:       c.PreferredEmail,
		Subject:  subject,
		Template: template,
		Data:     data,
	}
	if err := a.deps.Mail.Enqueue(ctx, msg); err != nil {
		level := "error"
		if errors.Is(err, notify.ErrQueueFull) {
			// The row is persisted; delivery waits for the next restart.
			level = "warn"
		}
		obs.LogRequest(map[string]any{
			"level": level, "msg": "email enqueue failed",
			"template": template, "error": err.Error(),
		})
	}
}
