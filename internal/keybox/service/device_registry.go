package service

import (
	"context"
	"strings"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

// DeviceRegistry answers "who is this controller and which room does it
// guard" for the rest of the service layer.
type DeviceRegistry struct {
	store store.DeviceStore
}

func NewDeviceRegistry(st store.DeviceStore) *DeviceRegistry {
	return &DeviceRegistry{store: st}
}

func (r *DeviceRegistry) Lookup(ctx context.Context, deviceID string) (store.DeviceRecord, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return store.DeviceRecord{}, nil
	}
	return r.store.Lookup(ctx, deviceID)
}

func (r *DeviceRegistry) NoteSeen(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, deviceID, time.Now().UTC())
}
