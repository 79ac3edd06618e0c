package store

import (
	"context"
	"time"
)

// SessionStore tracks who holds a room key: the first granted scan opens a
// session (key borrowed), the next granted scan by the same tag closes it
// (key returned).
type SessionStore interface {
	// Open records a borrow for (tag, room).
	Open(ctx context.Context, id, tag, room string, at time.Time) error

	// CloseOpen closes the most recent open session for (tag, room) and
	// reports whether one existed.
	CloseOpen(ctx context.Context, tag, room string, at time.Time) (bool, error)

	// HasOpen reports whether (tag, room) currently holds the key.
	HasOpen(ctx context.Context, tag, room string) (bool, error)
}
