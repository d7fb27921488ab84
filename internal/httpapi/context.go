package httpapi

import (
	"context"
	"net/http"

	"peterboroughtenants.org/internal/session"
)

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// media is the handler's declared response: a payload to run through the
// guard serializer, the action to guard against, and an optional top-level
// field allow-list. Handlers that write the response themselves leave it
// unset and the serializer is a passthrough.
type media struct {
	set     bool
	status  int
	payload any
	action  string
	include []string
}

// reqState is shared between the session gate and the handler for one
// request. The gate allocates it; handlers fill in media and, on the
// session bootstrap path, the auth result.
type reqState struct {
	media media
	auth  *session.AuthResult
}

type stateKey struct{}

func stateFromContext(ctx context.Context) *reqState {
	v, _ := ctx.Value(stateKey{}).(*reqState)
	return v
}

// setMedia hands the payload to the response serializer. The guard decides
// per object and per field what the principal actually receives.
func setMedia(r *http.Request, status int, payload any, action string, include ...string) {
	st := stateFromContext(r.Context())
	if st == nil {
		return
	}
	st.media = media{set: true, status: status, payload: payload, action: action, include: include}
}
