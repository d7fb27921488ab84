package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"peterboroughtenants.org/internal/audit"
	"peterboroughtenants.org/internal/directory"
	"peterboroughtenants.org/internal/session"
)

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Session   string     `json:"session"`
	Trusted   bool       `json:"trusted"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// handleSessionCreate bootstraps a session. Without credentials the client
// gets an anonymous untrusted session to browse with; with credentials the
// session is entrusted, linked to the contact and a short-lived bearer
// token is issued alongside.
func (a *API) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	info := clientInfoFrom(r)
	state := stateFromContext(ctx)

	if strings.TrimSpace(req.Email) == "" && req.Password == "" {
		sess, err := a.deps.Sessions.Establish(ctx, info)
		if err != nil {
			handleError(w, r, err)
			return
		}
		ledger, err := a.deps.Sessions.OpenRequest(ctx, sess, info)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if state != nil {
			state.auth = &session.AuthResult{Session: sess, Request: ledger, HashOK: true}
		}
		a.setSessionCookie(w, sess.ID)
		writeJSON(w, http.StatusCreated, sessionResponse{Session: sess.ID})
		return
	}

	contact, err := a.deps.Contacts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		handleError(w, r, err)
		return
	}

	sess, err := a.deps.Sessions.ResumeOrEstablish(ctx, contact.ID, info)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.deps.Sessions.Entrust(ctx, sess, contact.ID); err != nil {
		handleError(w, r, err)
		return
	}
	ledger, err := a.deps.Sessions.OpenRequest(ctx, sess, info)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if state != nil {
		state.auth = &session.AuthResult{Session: sess, Request: ledger, HashOK: true}
	}

	signed, expiresAt, err := a.deps.Tokens.Issue(contact.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	a.setSessionCookie(w, sess.ID)
	a.notifyContact(ctx, contact, "New sign-in to your account", "login_notice",
		map[string]string{"name": contact.Name()})
	_ = audit.LogEvent(ctx, "session.entrusted", map[string]any{
		"session": sess.ID, "contact": contact.ID,
	})

	writeJSON(w, http.StatusCreated, sessionResponse{
		Session:   sess.ID,
		Trusted:   true,
		Token:     signed,
		ExpiresAt: &expiresAt,
	})
}

// handleSessionDelete ends the current session.
func (a *API) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	state := stateFromContext(r.Context())
	if state == nil || state.auth == nil || state.auth.Session == nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.deps.Sessions.Logout(r.Context(), state.auth.Session.ID); err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "session.ended", map[string]any{
		"session": state.auth.Session.ID,
	})
	a.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
