package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"peterboroughtenants.org/internal/guard"
	"peterboroughtenants.org/internal/member"
	"peterboroughtenants.org/internal/obs"
	"peterboroughtenants.org/internal/session"
	"peterboroughtenants.org/internal/token"
)

// SessionCookie is the cookie carrying the opaque session id. Clients that
// cannot use cookies may send the X-Session-Id header instead.
const SessionCookie = "SESSION_ID"

// Headers of the correlation protocol.
const (
	HeaderClientID   = "X-Client-Id"
	HeaderSessionID  = "X-Session-Id"
	HeaderDevMessage = "X-Dev-Message"
)

// SessionGate is the middleware at the heart of the API: it binds each
// request to a session, appends the ledger entry, attaches the principal,
// runs the handler, serializes its declared payload through the guard and
// rotates the correlation hash on the way out.
type SessionGate struct {
	svc     *session.Service
	tokens  *token.Issuer
	members member.Store
	devMode bool
}

func NewSessionGate(svc *session.Service, tokens *token.Issuer, members member.Store, devMode bool) *SessionGate {
	return &SessionGate{svc: svc, tokens: tokens, members: members, devMode: devMode}
}

// bypass lists the requests that proceed without an established session:
// the session bootstrap itself plus operational probes.
func bypass(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics", "/info":
		return true
	case "/session":
		return r.Method == http.MethodPost
	}
	return false
}

// deferredWriter buffers the response so the gate can still add the
// rotated correlation header after the handler has run.
type deferredWriter struct {
	http.ResponseWriter
	code  int
	buf   bytes.Buffer
	wrote bool
}

func (w *deferredWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.wrote = true
}

func (w *deferredWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	w.wrote = true
	return w.buf.Write(b)
}

func (w *deferredWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

func (w *deferredWriter) flush() {
	w.ResponseWriter.WriteHeader(w.status())
	if w.buf.Len() > 0 {
		_, _ = w.ResponseWriter.Write(w.buf.Bytes())
	}
}

func clientInfoFrom(r *http.Request) session.ClientInfo {
	return session.ClientInfo{
		UserAgent:  r.UserAgent(),
		Host:       r.Host,
		RemoteAddr: clientIP(r),
		Path:       r.URL.Path,
		Method:     r.Method,
	}
}

func sessionIDFrom(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimSpace(r.Header.Get(HeaderSessionID))
}

func bearerTokenFrom(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Middleware wraps every route. See the type comment for the sequence.
func (g *SessionGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dw := &deferredWriter{ResponseWriter: w}
		defer dw.flush()

		state := &reqState{}
		ctx := context.WithValue(r.Context(), stateKey{}, state)

		if !bypass(r) {
			var ok bool
			ctx, ok = g.authenticate(ctx, dw, r, state)
			if !ok {
				return
			}
		}

		next.ServeHTTP(dw, r.WithContext(ctx))

		g.respond(ctx, dw, r, state)
	})
}

// authenticate validates the request against its session. On failure it
// writes the generic 401 and finalizes the ledger entry when one exists;
// a 401 never rotates the correlation hash.
func (g *SessionGate) authenticate(ctx context.Context, dw *deferredWriter, r *http.Request, state *reqState) (context.Context, bool) {
	info := clientInfoFrom(r)
	res, err := g.svc.Authenticate(ctx, sessionIDFrom(r), r.Header.Get(HeaderClientID), info)
	if err != nil {
		if errors.Is(err, session.ErrUnauthenticated) {
			if res != nil && res.Request != nil {
				_ = g.svc.FinishRequest(ctx, res.Request, http.StatusUnauthorized)
			}
			obs.LogRequest(map[string]any{
				"level": "warn", "msg": "authentication rejected",
				"path": r.URL.Path, "reason": err.Error(),
				"request_id": RequestIDFromContext(ctx),
			})
			writeError(dw, r, http.StatusUnauthorized, "authentication required")
			return ctx, false
		}
		writeError(dw, r, http.StatusInternalServerError, "internal error")
		return ctx, false
	}

	state.auth = res
	if !res.HashOK && g.devMode {
		dw.Header().Set(HeaderDevMessage, "stale client hash accepted in development mode")
	}

	raw := bearerTokenFrom(r)
	if res.Session.ContactID == "" {
		if raw != "" {
			return ctx, g.reject(ctx, dw, r, state, "bearer token on an anonymous session")
		}
		return ctx, true
	}

	if raw != "" {
		sub, err := g.tokens.Verify(raw)
		if err != nil || sub != res.Session.ContactID {
			return ctx, g.reject(ctx, dw, r, state, "bearer token does not match session")
		}
	}

	p, err := g.members.Find(ctx, res.Session.ContactID)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return ctx, g.reject(ctx, dw, r, state, "session contact no longer exists")
		}
		writeError(dw, r, http.StatusInternalServerError, "internal error")
		return ctx, false
	}
	p.Trusted = res.Session.Trusted
	return member.ContextWithPrincipal(ctx, p), true
}

func (g *SessionGate) reject(ctx context.Context, dw *deferredWriter, r *http.Request, state *reqState, reason string) bool {
	if state.auth != nil && state.auth.Request != nil {
		_ = g.svc.FinishRequest(ctx, state.auth.Request, http.StatusUnauthorized)
	}
	state.auth = nil
	obs.LogRequest(map[string]any{
		"level": "warn", "msg": "authentication rejected",
		"path": r.URL.Path, "reason": reason,
		"request_id": RequestIDFromContext(ctx),
	})
	writeError(dw, r, http.StatusUnauthorized, "authentication required")
	return false
}

// respond serializes the handler's declared payload, rotates the
// correlation hash unless the response is a 401, and finalizes the ledger
// entry with the outcome.
func (g *SessionGate) respond(ctx context.Context, dw *deferredWriter, r *http.Request, state *reqState) {
	if state.media.set && !dw.wrote {
		p, _ := member.PrincipalFromContext(ctx)
		out, err := guard.Render(state.media.payload, p, state.media.action, state.media.include)
		switch {
		case errors.Is(err, guard.ErrForbidden):
			writeError(dw, r, http.StatusForbidden, "forbidden")
		case errors.Is(err, guard.ErrNotImplemented):
			writeError(dw, r, http.StatusNotImplemented, "not implemented")
		case err != nil:
			writeError(dw, r, http.StatusInternalServerError, "internal error")
		default:
			status := state.media.status
			if status == 0 {
				status = http.StatusOK
			}
			writeJSON(dw, status, out)
		}
	}

	if state.auth == nil || state.auth.Request == nil {
		return
	}

	status := dw.status()
	if status != http.StatusUnauthorized {
		hash, err := g.svc.RotateHash(ctx, state.auth.Request)
		if err != nil {
			obs.LogRequest(map[string]any{
				"level": "error", "msg": "hash rotation failed",
				"error": err.Error(), "request_id": RequestIDFromContext(ctx),
			})
		} else {
			dw.Header().Set(HeaderClientID, hash)
		}
	}
	if err := g.svc.FinishRequest(ctx, state.auth.Request, status); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error", "msg": "ledger finalize failed",
			"error": err.Error(), "request_id": RequestIDFromContext(ctx),
		})
	}
}
