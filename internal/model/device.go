package model

import "time"

// DeviceStatus is the presence state of a client installation
type DeviceStatus string

const (
	DeviceActive  DeviceStatus = "active"
	DeviceRemoved DeviceStatus = "removed"
)

// Device represents a client installation tracked by heartbeats. Devices
// are never deleted; ones that stop heartbeating are flagged removed and
// re-activate on the next heartbeat.
type Device struct {
	ID                string       `json:"id"`
	SubjectID         string       `json:"subjectId"`
	DisplayEmail      string       `json:"displayEmail,omitempty"`
	BrowserDescriptor string       `json:"browserDescriptor,omitempty"`
	OSDescriptor      string       `json:"osDescriptor,omitempty"`
	NetworkAddress    string       `json:"networkAddress,omitempty"`
	Status            DeviceStatus `json:"status"`
	FirstSeen         time.Time    `json:"firstSeen"`
	LastSeen          time.Time    `json:"lastSeen"`
	RemovedAt         *time.Time   `json:"removedAt,omitempty"`
}

// IsRemoved checks if the device is currently flagged removed
func (d *Device) IsRemoved() bool {
	return d.Status == DeviceRemoved
}

// SilentFor returns how long the device has gone without a heartbeat
func (d *Device) SilentFor(now time.Time) time.Duration {
	return now.Sub(d.LastSeen)
}

// DeviceProfile carries the mutable fields a heartbeat reports
type DeviceProfile struct {
	DisplayEmail   string `json:"displayEmail,omitempty"`
	UserAgent      string `json:"userAgent,omitempty"`
	NetworkAddress string `json:"networkAddress,omitempty"`
}
