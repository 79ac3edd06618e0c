package store

import (
	"context"
	"time"
)

// DeviceRecord is the commissioning view of a keybox controller. Known
// means commissioned, enabled, and not revoked; Room is the room the
// device is registered to control.
type DeviceRecord struct {
	DeviceID string
	Known    bool
	Room     string
}

type DeviceStore interface {
	Lookup(ctx context.Context, deviceID string) (DeviceRecord, error)
	MarkSeen(ctx context.Context, deviceID string, t time.Time) error
}
