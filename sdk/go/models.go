package gatepass

import "time"

// AccessRequest is a request to reach a guarded resource. Requests start
// pending and are resolved exactly once to approved or denied.
type AccessRequest struct {
	ID              string     `json:"id"`
	SubjectID       string     `json:"subjectId"`
	ResourceURL     string     `json:"resourceUrl"`
	DurationMinutes int        `json:"requestedDurationMinutes"`
	DurationKind    string     `json:"durationKind"`
	Status          string     `json:"status"`
	ApprovedBy      *string    `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	Version         int        `json:"version"`
}

// Session is the live access window minted when a request is approved.
type Session struct {
	RequestID   string    `json:"requestId"`
	SubjectID   string    `json:"subjectId"`
	ResourceURL string    `json:"resourceUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AccessDecision is the outcome of a session check. Session is set only
// when Active is true.
type AccessDecision struct {
	Active  bool     `json:"active"`
	Session *Session `json:"session,omitempty"`
}

// SubmitRequestParams is the payload for SubmitRequest.
type SubmitRequestParams struct {
	SubjectID       string `json:"subjectId"`
	ResourceURL     string `json:"resourceUrl"`
	DurationMinutes int    `json:"requestedDurationMinutes"`
	// DurationKind is "preset" or "custom". Defaults to "preset".
	DurationKind string `json:"durationKind,omitempty"`
}

// HeartbeatParams is the payload for Heartbeat. DeviceID and SubjectID
// are required; the profile fields are optional and refresh the stored
// device record when present.
type HeartbeatParams struct {
	DeviceID       string `json:"deviceId"`
	SubjectID      string `json:"subjectId"`
	DisplayEmail   string `json:"displayEmail,omitempty"`
	UserAgent      string `json:"userAgent,omitempty"`
	NetworkAddress string `json:"networkAddress,omitempty"`
}

// EventParams is the payload for RecordEvent. Type must be one of the
// server's event kinds, for example "blocked-action" or "request".
type EventParams struct {
	Type        string `json:"type"`
	SubjectID   string `json:"subjectId,omitempty"`
	ResourceURL string `json:"resourceUrl,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
	DeviceID    string `json:"deviceId,omitempty"`
	Details     string `json:"details,omitempty"`
}

// Badge holds the notification counters shown to approvers.
type Badge struct {
	PendingRequests int `json:"pendingRequests"`
	RemovedDevices  int `json:"removedDevices"`
}

// AdminToken is a bearer token for the admin endpoints.
type AdminToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}
