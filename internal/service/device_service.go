package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/repository"
)

// DeviceService is the device registry: it tracks which client
// installations are present by heartbeat and flags the ones that have
// gone silent. Devices are never deleted from the roster.
type DeviceService struct {
	deviceRepo  *repository.DeviceRepository
	counterRepo *repository.CounterRepository
	audit       *AuditService
	cfg         *config.Config
	log         *logger.Logger

	now func() time.Time
}

// NewDeviceService creates a new DeviceService
func NewDeviceService(
	deviceRepo *repository.DeviceRepository,
	counterRepo *repository.CounterRepository,
	audit *AuditService,
	cfg *config.Config,
	log *logger.Logger,
) *DeviceService {
	return &DeviceService{
		deviceRepo:  deviceRepo,
		counterRepo: counterRepo,
		audit:       audit,
		cfg:         cfg,
		log:         log.WithComponent("device_service"),
		now:         time.Now,
	}
}

// DeriveDeviceID builds the stable installation id from the subject
// identity, the caller-supplied client fingerprint, and the first-seen
// time. The same installation derives the same id across restarts.
func DeriveDeviceID(subjectID, fingerprint string, firstSeen time.Time) string {
	input := strings.Join([]string{
		subjectID,
		fingerprint,
		firstSeen.UTC().Format(time.RFC3339),
	}, "|")
	hash := sha256.Sum256([]byte(input))
	return "dev_" + hex.EncodeToString(hash[:])[:26]
}

// Heartbeat upserts presence for a device. Unknown devices are
// registered; removed devices re-activate when self reactivation is
// enabled. Store failures are logged and swallowed so a flaky store
// never turns heartbeats into client-visible errors.
func (s *DeviceService) Heartbeat(ctx context.Context, deviceID, subjectID string, profile model.DeviceProfile) error {
	if deviceID == "" || subjectID == "" {
		return fmt.Errorf("%w: deviceId and subjectId are required", ErrInvalidInput)
	}
	now := s.now()

	device, err := s.deviceRepo.GetByID(ctx, deviceID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn().Err(err).Str("device_id", deviceID).Msg("heartbeat lookup failed")
		return nil
	}

	if device == nil {
		device = &model.Device{
			ID:        deviceID,
			SubjectID: subjectID,
			Status:    model.DeviceActive,
			FirstSeen: now,
			LastSeen:  now,
		}
		applyProfile(device, profile)
		if err := s.deviceRepo.Upsert(ctx, device); err != nil {
			s.log.Warn().Err(err).Str("device_id", deviceID).Msg("heartbeat registration failed")
			return nil
		}
		s.recordEvent(model.Event{
			Kind:      model.EventDeviceRegistered,
			SubjectID: subjectID,
			DeviceID:  deviceID,
			Details:   deviceSummary(device),
		})
		s.log.Info().Str("device_id", deviceID).Str("subject_id", subjectID).Msg("device registered")
		return nil
	}

	wasRemoved := device.IsRemoved()
	reactivate := wasRemoved && s.cfg.Devices.SelfReactivate

	device.LastSeen = now
	applyProfile(device, profile)
	if reactivate {
		device.Status = model.DeviceActive
		device.RemovedAt = nil
	}

	if err := s.deviceRepo.Upsert(ctx, device); err != nil {
		s.log.Warn().Err(err).Str("device_id", deviceID).Msg("heartbeat update failed")
		return nil
	}

	if reactivate {
		if _, err := s.counterRepo.Add(ctx, repository.CounterNameRemovedDevices, -1); err != nil {
			s.log.Warn().Err(err).Msg("failed to adjust removed-device counter")
		}
		s.recordEvent(model.Event{
			Kind:      model.EventDeviceRegistered,
			SubjectID: device.SubjectID,
			DeviceID:  device.ID,
			Details:   "re-registered after removal: " + deviceSummary(device),
		})
		s.log.Info().Str("device_id", deviceID).Msg("removed device re-registered")
	}
	return nil
}

// SweepRemoved flags active devices silent past the removal threshold
// and logs one device-removed event per flagged device. The silence
// predicate is re-checked against a fresh read right before each write,
// so a device that heartbeats mid-sweep is left active.
func (s *DeviceService) SweepRemoved(ctx context.Context) (int, error) {
	now := s.now()
	threshold := s.cfg.Devices.RemovalThreshold

	devices, err := s.deviceRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list devices: %w", err)
	}

	flagged := 0
	removedTotal := 0
	for _, device := range devices {
		if device.IsRemoved() {
			removedTotal++
			continue
		}
		if device.SilentFor(now) <= threshold {
			continue
		}

		current, err := s.deviceRepo.GetByID(ctx, device.ID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return flagged, fmt.Errorf("failed to re-read device: %w", err)
		}
		if current.IsRemoved() || current.SilentFor(now) <= threshold {
			continue
		}

		removedAt := now
		current.Status = model.DeviceRemoved
		current.RemovedAt = &removedAt
		if err := s.deviceRepo.Upsert(ctx, current); err != nil {
			return flagged, fmt.Errorf("failed to flag device %s: %w", current.ID, err)
		}
		flagged++
		removedTotal++

		s.recordEvent(model.Event{
			Kind:      model.EventDeviceRemoved,
			SubjectID: current.SubjectID,
			DeviceID:  current.ID,
			Details:   fmt.Sprintf("%s, last seen %s", deviceSummary(current), current.LastSeen.UTC().Format(time.RFC3339)),
		})
		s.log.Info().
			Str("device_id", current.ID).
			Str("subject_id", current.SubjectID).
			Dur("silent_for", current.SilentFor(now)).
			Msg("silent device flagged removed")
	}

	// The counter is set to the recomputed roster total each pass, which
	// heals any drift from interleaved heartbeat adjustments
	if err := s.counterRepo.Set(ctx, repository.CounterNameRemovedDevices, removedTotal); err != nil {
		s.log.Warn().Err(err).Msg("failed to update removed-device counter")
	}
	return flagged, nil
}

// DeviceFilter narrows List output; zero values match everything
type DeviceFilter struct {
	Status          model.DeviceStatus
	SubjectContains string
}

// List returns devices matching the filter, most recently seen first
func (s *DeviceService) List(ctx context.Context, filter DeviceFilter) ([]*model.Device, error) {
	devices, err := s.deviceRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*model.Device, 0, len(devices))
	for _, device := range devices {
		if filter.Status != "" && device.Status != filter.Status {
			continue
		}
		if filter.SubjectContains != "" && !strings.Contains(device.SubjectID, filter.SubjectContains) {
			continue
		}
		matched = append(matched, device)
	}
	return matched, nil
}

func applyProfile(device *model.Device, profile model.DeviceProfile) {
	if profile.DisplayEmail != "" {
		device.DisplayEmail = profile.DisplayEmail
	}
	if profile.NetworkAddress != "" {
		device.NetworkAddress = profile.NetworkAddress
	}
	if profile.UserAgent != "" {
		device.BrowserDescriptor, device.OSDescriptor = parseUserAgentDetails(profile.UserAgent)
	}
}

// deviceSummary renders the human-readable descriptor used in audit
// event details
func deviceSummary(d *model.Device) string {
	browser := d.BrowserDescriptor
	if browser == "" {
		browser = "Unknown"
	}
	osDesc := d.OSDescriptor
	if osDesc == "" {
		osDesc = "Unknown"
	}
	return browser + " on " + osDesc
}

type uaMarker struct {
	token string
	label string
}

// Match order matters: Edge and Opera agents embed "chrome", Chrome
// agents embed "safari", Android agents embed "linux", and iOS agents
// embed "mac os".
var browserMarkers = []uaMarker{
	{"firefox", "Firefox"},
	{"edg", "Edge"},
	{"opr", "Opera"},
	{"opera", "Opera"},
	{"chromium", "Chrome"},
	{"chrome", "Chrome"},
	{"safari", "Safari"},
}

var osMarkers = []uaMarker{
	{"iphone", "iOS"},
	{"ipad", "iPadOS"},
	{"android", "Android"},
	{"windows", "Windows"},
	{"cros", "ChromeOS"},
	{"macintosh", "macOS"},
	{"mac os", "macOS"},
	{"linux", "Linux"},
}

func matchMarker(ua string, markers []uaMarker) string {
	for _, m := range markers {
		if strings.Contains(ua, m.token) {
			return m.label
		}
	}
	return "Unknown"
}

// parseUserAgentDetails extracts browser and OS descriptors from a raw
// user agent string
func parseUserAgentDetails(ua string) (string, string) {
	if ua == "" {
		return "Unknown", "Unknown"
	}
	lower := strings.ToLower(ua)
	return matchMarker(lower, browserMarkers), matchMarker(lower, osMarkers)
}

func (s *DeviceService) recordEvent(event model.Event) {
	if err := s.audit.Record(event); err != nil {
		s.log.Error().Err(err).Str("kind", string(event.Kind)).Msg("failed to record audit event")
	}
}
