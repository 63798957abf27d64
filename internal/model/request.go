package model

import "time"

// RequestStatus is the lifecycle state of an access request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// DurationKind distinguishes preset duration choices from custom ones
type DurationKind string

const (
	DurationPreset DurationKind = "preset"
	DurationCustom DurationKind = "custom"
)

// AccessRequest represents a request for time-bounded access to a resource.
// Requests are never deleted; resolved requests remain as the historical
// record of who asked for and who granted access.
type AccessRequest struct {
	ID              string        `json:"id"`
	SubjectID       string        `json:"subjectId"`
	ResourceURL     string        `json:"resourceUrl"`
	DurationMinutes int           `json:"requestedDurationMinutes"`
	DurationKind    DurationKind  `json:"durationKind"`
	Status          RequestStatus `json:"status"`
	ApprovedBy      *string       `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time    `json:"approvedAt,omitempty"`
	ExpiresAt       *time.Time    `json:"expiresAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	// Version increments on every write and backs the optimistic
	// conflict check in approve/deny.
	Version int `json:"version"`
}

// IsResolved checks if the request has reached a terminal status
func (r *AccessRequest) IsResolved() bool {
	return r.Status != RequestPending
}

// Duration returns the requested duration
func (r *AccessRequest) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}
