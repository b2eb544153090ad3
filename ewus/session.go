package ewus

import (
	"time"
)

// SessionDuration is the server-side lifetime of a login session
const SessionDuration = 8 * time.Hour

// Session represents an active login session. It is immutable: a new login
// replaces the session rather than mutating it.
type Session struct {
	ID         string    `json:"sessionId"`
	AuthToken  string    `json:"authToken"`
	LoginTime  time.Time `json:"loginTime"`
	OperatorID string    `json:"operatorId"`
	Domain     string    `json:"domainCode"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// The snapshot keys are part of the external contract: the surrounding
// application stores the record in its own session store and hands it back
// to a fresh client instance later.
const (
	snapshotSessionID  = "session_id"
	snapshotAuthToken  = "auth_token"
	snapshotLoginTime  = "login_time"
	snapshotOperatorID = "operator_id"
	snapshotDomain     = "domain_code"
)

// Expired reports whether the session has expired at the given instant
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Save serialises the session into a flat string-keyed record suitable for an
// external session store. Timestamps are RFC 3339.
func (s *Session) Save() map[string]string {
	return map[string]string{
		snapshotSessionID:  s.ID,
		snapshotAuthToken:  s.AuthToken,
		snapshotLoginTime:  s.LoginTime.Format(time.RFC3339),
		snapshotOperatorID: s.OperatorID,
		snapshotDomain:     s.Domain,
	}
}

// restoreSession rebuilds a session from a saved record. The expiry time is
// derived from the login time rather than stored. Returns nil and false when
// a field is absent or malformed, or when the session has already expired.
func restoreSession(record map[string]string, now time.Time) (*Session, bool) {
	if len(record) == 0 {
		return nil, false
	}
	for _, key := range []string{snapshotSessionID, snapshotAuthToken, snapshotLoginTime, snapshotOperatorID, snapshotDomain} {
		if record[key] == "" {
			return nil, false
		}
	}
	loginTime, err := time.Parse(time.RFC3339, record[snapshotLoginTime])
	if err != nil {
		return nil, false
	}
	s := &Session{
		ID:         record[snapshotSessionID],
		AuthToken:  record[snapshotAuthToken],
		LoginTime:  loginTime,
		OperatorID: record[snapshotOperatorID],
		Domain:     record[snapshotDomain],
		ExpiresAt:  loginTime.Add(SessionDuration),
	}
	if s.Expired(now) {
		return nil, false
	}
	return s, true
}
