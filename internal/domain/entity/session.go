package entity

import "time"

// SessionKind is the authentication state of a session. A session is in exactly one kind.
type SessionKind string

const (
	SessionAnonymous SessionKind = "anonymous"
	SessionUser      SessionKind = "user"
	SessionAdmin     SessionKind = "admin"
)

// String returns the string representation of the SessionKind.
func (k SessionKind) String() string {
	return string(k)
}

// IsValid checks if the SessionKind is a known value.
func (k SessionKind) IsValid() bool {
	switch k {
	case SessionAnonymous, SessionUser, SessionAdmin:
		return true
	default:
		return false
	}
}

// Session is the ephemeral per-browser authentication state.
// Kind is only changed through GrantUser, GrantAdmin and Reset.
type Session struct {
	ID        string      `json:"id"`
	Kind      SessionKind `json:"kind"`
	Username  string      `json:"username,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`

	dirty bool
}

// NewAnonymousSession creates an unauthenticated session.
func NewAnonymousSession(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		Kind:      SessionAnonymous,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// GrantUser moves the session into the user state, dropping any admin grant.
func (s *Session) GrantUser(username string) {
	s.Kind = SessionUser
	s.Username = username
	s.dirty = true
}

// GrantAdmin moves the session into the admin state, dropping any user grant.
func (s *Session) GrantAdmin(username string) {
	s.Kind = SessionAdmin
	s.Username = username
	s.dirty = true
}

// Reset returns the session to the anonymous state.
func (s *Session) Reset() {
	s.Kind = SessionAnonymous
	s.Username = ""
	s.dirty = true
}

// IsAuthenticated reports a user (non-admin) login.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Kind == SessionUser
}

// IsAdmin reports an administrator login.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Kind == SessionAdmin
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Dirty reports whether the state changed since the session was loaded.
func (s *Session) Dirty() bool {
	return s.dirty
}

// MarkClean is called by the session store after a successful save.
func (s *Session) MarkClean() {
	s.dirty = false
}
