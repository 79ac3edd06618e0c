package service

import (
	"context"
	"strings"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

type HeartbeatService struct {
	heartbeats store.HeartbeatStore
	registry   *DeviceRegistry
}

func NewHeartbeatService(hs store.HeartbeatStore, reg *DeviceRegistry) *HeartbeatService {
	return &HeartbeatService{heartbeats: hs, registry: reg}
}

func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return types.HeartbeatResponse{}, ErrInvalidDeviceID
	}

	device, err := s.registry.Lookup(ctx, deviceID)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}

	rec := store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC(),
		Request:    req,
	}
	if err := s.heartbeats.UpsertHeartbeat(ctx, deviceID, rec); err != nil {
		return types.HeartbeatResponse{}, err
	}

	return types.HeartbeatResponse{
		OK:         true,
		Known:      device.Known,
		DeviceID:   deviceID,
		Room:       device.Room,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
