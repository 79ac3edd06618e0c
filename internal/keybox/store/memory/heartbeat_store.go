package memory

import (
	"context"
	"sync"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

// HeartbeatStore keeps the latest heartbeat per device plus an append-only
// history so the pruner has something to prune in tests.
type HeartbeatStore struct {
	mu      sync.Mutex
	latest  map[string]store.HeartbeatRecord
	history []store.HeartbeatRecord
}

func NewHeartbeatStore() *HeartbeatStore {
	return &HeartbeatStore{latest: make(map[string]store.HeartbeatRecord)}
}

func (s *HeartbeatStore) UpsertHeartbeat(_ context.Context, deviceID string, rec store.HeartbeatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.latest[deviceID] = rec
	s.history = append(s.history, rec)
	return nil
}

func (s *HeartbeatStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	var deleted int64
	for _, rec := range s.history {
		if rec.ReceivedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.history = kept
	return deleted, nil
}

// Latest returns the most recent heartbeat for a device. Test-only helper.
func (s *HeartbeatStore) Latest(deviceID string) (store.HeartbeatRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.latest[deviceID]
	return rec, ok
}
