package store

import (
	"context"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

type HeartbeatRecord struct {
	ReceivedAt time.Time
	Request    types.HeartbeatRequest
}

type HeartbeatStore interface {
	UpsertHeartbeat(ctx context.Context, deviceID string, rec HeartbeatRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
