package store

import (
	"context"
	"time"
)

// AttemptRecord is one access decision, written exactly once per decided
// scan. Tag is the canonical UID hex; empty when the payload was
// unreadable. Never mutated after the write.
type AttemptRecord struct {
	ID          string
	DeviceID    string
	Room        string
	Tag         string
	Instructor  string
	Granted     bool
	Suppressed  bool // granted, but the pulse was withheld by cooldown
	Reason      string
	Action      string // "borrow_key" | "return_key" | ""
	Origin      string // "online" | "offline"
	DoorClosed  *bool
	RequestedAt *time.Time // optional device-reported timestamp
	DecidedAt   time.Time
}

// AttemptStore persists access decisions as an append-only audit log.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord) error
}
