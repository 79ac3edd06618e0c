package store

import (
	"context"
	"time"
)

// ManualCommandRecord is a staff-issued door operation waiting for the
// room's device to poll it.
type ManualCommandRecord struct {
	ID       string
	Room     string
	Action   string // "open" | "close"
	IssuedBy string
	Note     string
	IssuedAt time.Time
}

type ManualCommandStore interface {
	Enqueue(ctx context.Context, rec ManualCommandRecord) error

	// LatestSince returns the newest command for the room issued at or
	// after since, if any.
	LatestSince(ctx context.Context, room string, since time.Time) (ManualCommandRecord, bool, error)

	// PruneOlderThan removes commands issued before cutoff, returning how
	// many were deleted.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
