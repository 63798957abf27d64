package model

import "time"

// Session represents a live access grant. Exactly one session is created
// per approved request; expired sessions are hard-deleted, the request
// keeps the historical record.
type Session struct {
	RequestID   string    `json:"requestId"`
	SubjectID   string    `json:"subjectId"`
	ResourceURL string    `json:"resourceUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	// ExpiresAt is fixed at creation and never extended; a renewed grant
	// is a new session tied to a new request.
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsActive checks if the session has not yet expired
func (s *Session) IsActive(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
