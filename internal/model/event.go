package model

import "time"

// EventKind is the enumerated type tag of an audit event
type EventKind string

const (
	EventBlockedAction    EventKind = "blocked-action"
	EventRequest          EventKind = "request"
	EventApproval         EventKind = "approval"
	EventDenial           EventKind = "denial"
	EventSessionExpired   EventKind = "session-expired"
	EventDeviceRegistered EventKind = "device-registered"
	EventDeviceRemoved    EventKind = "device-removed"
)

// ValidEventKind checks if k is one of the enumerated event kinds
func ValidEventKind(k EventKind) bool {
	switch k {
	case EventBlockedAction, EventRequest, EventApproval, EventDenial,
		EventSessionExpired, EventDeviceRegistered, EventDeviceRemoved:
		return true
	}
	return false
}

// Event is the caller-supplied portion of an audit log entry. Related
// records are referenced by id only.
type Event struct {
	Kind        EventKind `json:"type"`
	SubjectID   string    `json:"subjectId,omitempty"`
	ResourceURL string    `json:"resourceUrl,omitempty"`
	RequestID   string    `json:"requestId,omitempty"`
	DeviceID    string    `json:"deviceId,omitempty"`
	ApproverID  string    `json:"approverId,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// AuditLogEntry is a persisted audit event. The log is append-only and
// bounded; entries past the retention cap are dropped oldest first.
type AuditLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Event
}
