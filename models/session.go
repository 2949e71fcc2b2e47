package models

import "time"

// SessionState is the authentication state of a brokerage session.
type SessionState string

const (
	SessionStateUnauthenticated  SessionState = "UNAUTHENTICATED"
	SessionStateAwaitingCallback SessionState = "AWAITING_CALLBACK"
	SessionStateAuthenticated    SessionState = "AUTHENTICATED"
)

// BrokerSession is the authenticated context for brokerage calls. Sessions are
// values: state transitions return a new session instead of mutating shared
// state. A session invalidated by a 401 cannot be refreshed; a fresh login
// URL + callback round trip is required.
type BrokerSession struct {
	State       SessionState `json:"state"`
	AccessToken string       `json:"-"`
	ObtainedAt  time.Time    `json:"obtained_at,omitempty"`
	ProfileID   string       `json:"profile_id,omitempty"`
}

// Authenticated reports whether the session permits trading calls.
func (s BrokerSession) Authenticated() bool {
	return s.State == SessionStateAuthenticated && s.AccessToken != ""
}

// Invalidated returns the session after a 401 or explicit logout.
func (s BrokerSession) Invalidated() BrokerSession {
	return BrokerSession{State: SessionStateUnauthenticated}
}
