package session

import "time"

// Session binds a client to the server across requests. The client is
// identified by its keyed user-agent hash, origin host and remote address;
// all three must match on every request.
type Session struct {
	ID            string
	UserAgentHash string
	RemoteAddr    string
	Source        string
	Created       time.Time
	LastUsed      time.Time
	Trusted       bool
	ContactID     string // empty until login
}

// Request is one ledger entry per inbound request. ReturnHash is the
// correlation hash issued with the response; the client must echo it on a
// subsequent request to prove continuity.
type Request struct {
	ID           string
	SessionID    string
	Started      time.Time
	Finished     time.Time
	Duration     float64 // seconds
	Host         string
	Path         string
	Method       string
	Trusted      bool // session trust at request time
	ResponseCode int
	ContactID    string
	ReturnHash   string
}

// End stamps the completion time and response code.
func (r *Request) End(code int, at time.Time) {
	r.Finished = at
	r.ResponseCode = code
	if !r.Started.IsZero() {
		r.Duration = at.Sub(r.Started).Seconds()
	}
}
