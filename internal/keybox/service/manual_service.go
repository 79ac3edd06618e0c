package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

var (
	ErrInvalidRoom   = errors.New("room is required")
	ErrInvalidAction = errors.New("action must be open or close")
)

// ManualService queues staff-issued door operations for devices to poll.
// Commands expire after the freshness window; a device that was offline
// while the command was fresh never sees it.
type ManualService struct {
	commands store.ManualCommandStore
	registry *DeviceRegistry
	window   time.Duration
	now      func() time.Time
}

func NewManualService(cs store.ManualCommandStore, reg *DeviceRegistry, window time.Duration) *ManualService {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &ManualService{
		commands: cs,
		registry: reg,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ManualService) Trigger(ctx context.Context, req types.ManualTriggerRequest) (types.ManualTriggerResponse, error) {
	room := strings.TrimSpace(req.Room)
	if room == "" {
		return types.ManualTriggerResponse{}, ErrInvalidRoom
	}

	action := strings.TrimSpace(req.Action)
	if action != "open" && action != "close" {
		return types.ManualTriggerResponse{}, ErrInvalidAction
	}

	now := s.now()
	rec := store.ManualCommandRecord{
		ID:       uuid.NewString(),
		Room:     room,
		Action:   action,
		IssuedBy: strings.TrimSpace(req.IssuedBy),
		Note:     strings.TrimSpace(req.Note),
		IssuedAt: now,
	}
	if err := s.commands.Enqueue(ctx, rec); err != nil {
		return types.ManualTriggerResponse{}, err
	}

	return types.ManualTriggerResponse{
		OK:         true,
		CommandID:  rec.ID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}

// Poll answers a device asking for pending commands. The device polls on a
// short interval, so only commands issued within the freshness window are
// returned; anything older is presumed already acted on or abandoned.
func (s *ManualService) Poll(ctx context.Context, deviceID string) (types.ManualPollResponse, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return types.ManualPollResponse{}, ErrInvalidDeviceID
	}

	now := s.now()
	resp := types.ManualPollResponse{
		OK:         true,
		ServerTime: now.Format(time.RFC3339Nano),
	}

	device, err := s.registry.Lookup(ctx, deviceID)
	if err != nil {
		return types.ManualPollResponse{}, err
	}
	if !device.Known || device.Room == "" {
		return resp, nil
	}

	cmd, ok, err := s.commands.LatestSince(ctx, device.Room, now.Add(-s.window))
	if err != nil {
		return types.ManualPollResponse{}, err
	}
	if !ok {
		return resp, nil
	}

	resp.HasCommand = true
	resp.Action = cmd.Action
	resp.IssuedBy = cmd.IssuedBy
	resp.IssuedAt = cmd.IssuedAt.Format(time.RFC3339Nano)
	return resp, nil
}
