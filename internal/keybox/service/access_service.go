package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyboxlab/keyboxd/internal/keybox/actuator"
	"github.com/keyboxlab/keyboxd/internal/keybox/credential"
	"github.com/keyboxlab/keyboxd/internal/keybox/journal"
	"github.com/keyboxlab/keyboxd/internal/keybox/schedule"
	"github.com/keyboxlab/keyboxd/internal/keybox/store"
	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

var (
	ErrInvalidDeviceID = errors.New("device_id is required")
	ErrInvalidTag      = errors.New("tag is required")
)

// Reason codes carried on every decision. Devices display them verbatim,
// so they are part of the wire contract.
const (
	ReasonScheduled     = "scheduled"
	ReasonUnknownDevice = "unknown_device"
	ReasonMalformed     = "malformed_credential"
	ReasonNoSchedule    = "no_schedule"
	ReasonOutsideHours  = "outside_hours"
	ReasonNotAuthorized = "not_authorized"
	ReasonCooldown      = "cooldown"
)

const (
	ActionBorrow = "borrow_key"
	ActionReturn = "return_key"
)

// CooldownPolicy selects what a second authorized scan gets while the lock
// is still pulsing or cooling down.
type CooldownPolicy string

const (
	// PolicySuppress acknowledges the grant but withholds the pulse.
	PolicySuppress CooldownPolicy = "suppress"
	// PolicyDeny turns the scan into a denial with reason "cooldown".
	PolicyDeny CooldownPolicy = "deny"
)

func (p CooldownPolicy) valid() bool {
	return p == PolicySuppress || p == PolicyDeny
}

type AccessConfig struct {
	Registry  *DeviceRegistry
	Schedules *schedule.Store
	Locks     *actuator.Controller
	Attempts  store.AttemptStore
	Sessions  store.SessionStore

	// Journal is the durable audit stream; nil disables journaling.
	Journal *journal.Journal

	Policy CooldownPolicy
	Logger *log.Logger

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// AccessService is the decision engine: it turns a tag scan into exactly
// one recorded decision and at most one lock pulse.
type AccessService struct {
	registry  *DeviceRegistry
	schedules *schedule.Store
	locks     *actuator.Controller
	attempts  store.AttemptStore
	sessions  store.SessionStore
	journal   *journal.Journal
	policy    CooldownPolicy
	logger    *log.Logger
	now       func() time.Time
}

func NewAccessService(cfg AccessConfig) *AccessService {
	s := &AccessService{
		registry:  cfg.Registry,
		schedules: cfg.Schedules,
		locks:     cfg.Locks,
		attempts:  cfg.Attempts,
		sessions:  cfg.Sessions,
		journal:   cfg.Journal,
		policy:    cfg.Policy,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if !s.policy.valid() {
		s.policy = PolicySuppress
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Decide evaluates one scan. The returned error covers request-shape
// problems only; every evaluated scan, granted or denied, comes back as a
// response and is recorded exactly once.
func (s *AccessService) Decide(ctx context.Context, req types.ScanRequest) (types.ScanResponse, error) {
	now := s.now().UTC()

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return types.ScanResponse{}, ErrInvalidDeviceID
	}
	if strings.TrimSpace(req.Tag) == "" {
		return types.ScanResponse{}, ErrInvalidTag
	}

	device, err := s.registry.Lookup(ctx, deviceID)
	if err != nil {
		return types.ScanResponse{}, err
	}
	if err := s.registry.NoteSeen(ctx, deviceID); err != nil {
		s.logger.Printf("access: note seen %s: %v", deviceID, err)
	}

	// The registry's room assignment wins over whatever the device claims.
	room := device.Room
	if room == "" {
		room = strings.TrimSpace(req.Room)
	}

	if !device.Known {
		return s.deny(ctx, req, device, room, "", ReasonUnknownDevice, now), nil
	}

	cred, err := credential.Parse(req.Tag)
	if err != nil {
		return s.deny(ctx, req, device, room, "", ReasonMalformed, now), nil
	}
	tag := cred.String()

	slot, covered := s.schedules.Lookup(room, now)
	if !covered {
		reason := ReasonNoSchedule
		if s.schedules.DayMatch(room, now) {
			reason = ReasonOutsideHours
		}
		return s.deny(ctx, req, device, room, tag, reason, now), nil
	}

	if !slot.Authorizes(cred) {
		return s.deny(ctx, req, device, room, tag, ReasonNotAuthorized, now), nil
	}

	pulse, ok := s.locks.RequestPulse(room, now)
	if !ok {
		if s.policy == PolicyDeny {
			return s.deny(ctx, req, device, room, tag, ReasonCooldown, now), nil
		}
		// Grant acknowledged, pulse withheld. The cabinet never opens, so
		// the session ledger is left alone.
		resp := types.ScanResponse{
			OK:         true,
			Known:      true,
			Granted:    true,
			Suppressed: true,
			Reason:     ReasonCooldown,
			Instructor: slot.Instructor,
			Room:       room,
			ServerTime: now.Format(time.RFC3339Nano),
		}
		s.record(ctx, store.AttemptRecord{
			DeviceID:   deviceID,
			Room:       room,
			Tag:        tag,
			Instructor: slot.Instructor,
			Granted:    true,
			Suppressed: true,
			Reason:     ReasonCooldown,
			DoorClosed: req.DoorClosed,
			DecidedAt:  now,
		}, req.RequestedAt)
		return resp, nil
	}

	action := s.toggleSession(ctx, tag, room, now)

	resp := types.ScanResponse{
		OK:         true,
		Known:      true,
		Granted:    true,
		Reason:     ReasonScheduled,
		Action:     action,
		PulseMS:    uint32(pulse.Duration.Milliseconds()),
		Instructor: slot.Instructor,
		Room:       room,
		ServerTime: now.Format(time.RFC3339Nano),
	}
	s.record(ctx, store.AttemptRecord{
		DeviceID:   deviceID,
		Room:       room,
		Tag:        tag,
		Instructor: slot.Instructor,
		Granted:    true,
		Reason:     ReasonScheduled,
		Action:     action,
		DoorClosed: req.DoorClosed,
		DecidedAt:  now,
	}, req.RequestedAt)
	return resp, nil
}

func (s *AccessService) deny(
	ctx context.Context,
	req types.ScanRequest,
	device store.DeviceRecord,
	room, tag, reason string,
	now time.Time,
) types.ScanResponse {
	s.record(ctx, store.AttemptRecord{
		DeviceID:   strings.TrimSpace(req.DeviceID),
		Room:       room,
		Tag:        tag,
		Granted:    false,
		Reason:     reason,
		DoorClosed: req.DoorClosed,
		DecidedAt:  now,
	}, req.RequestedAt)

	return types.ScanResponse{
		OK:         device.Known,
		Known:      device.Known,
		Granted:    false,
		Reason:     reason,
		Room:       room,
		ServerTime: now.Format(time.RFC3339Nano),
	}
}

// toggleSession flips the borrow/return state for (tag, room) and names
// the action the device should announce. Ledger errors are logged, not
// surfaced: the lock is already committed to pulsing.
func (s *AccessService) toggleSession(ctx context.Context, tag, room string, now time.Time) string {
	hasOpen, err := s.sessions.HasOpen(ctx, tag, room)
	if err != nil {
		s.logger.Printf("access: session lookup %s/%s: %v", tag, room, err)
		hasOpen = false
	}

	if hasOpen {
		if _, err := s.sessions.CloseOpen(ctx, tag, room, now); err != nil {
			s.logger.Printf("access: close session %s/%s: %v", tag, room, err)
		}
		return ActionReturn
	}

	if err := s.sessions.Open(ctx, uuid.NewString(), tag, room, now); err != nil {
		s.logger.Printf("access: open session %s/%s: %v", tag, room, err)
	}
	return ActionBorrow
}

// record persists the decision to the audit store and the durable journal.
// Neither write may block the device's answer; failures are logged and the
// journal flags itself unhealthy.
func (s *AccessService) record(ctx context.Context, rec store.AttemptRecord, requestedAt string) {
	rec.ID = uuid.NewString()
	rec.Origin = "online"
	if t := parseOptionalTimestamp(requestedAt); t != nil {
		rec.RequestedAt = t
	}

	if err := s.attempts.RecordAttempt(ctx, rec); err != nil {
		s.logger.Printf("access: record attempt %s: %v", rec.ID, err)
	}
	if s.journal != nil {
		if err := s.journal.Append(rec); err != nil {
			s.logger.Printf("access: journal attempt %s: %v", rec.ID, err)
		}
	}
}

// parseOptionalTimestamp parses a device-reported timestamp, returning nil
// when the string is empty or unreadable.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}
