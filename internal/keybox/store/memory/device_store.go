package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

// DeviceStore holds commissioned devices and their room assignments,
// seeded from a device_id->room map.
type DeviceStore struct {
	mu    sync.RWMutex
	known map[string]string // device_id -> room code
	seen  map[string]time.Time
}

func NewDeviceStore(devices map[string]string) *DeviceStore {
	k := make(map[string]string, len(devices))
	for id, room := range devices {
		id = strings.TrimSpace(id)
		if id != "" {
			k[id] = strings.TrimSpace(room)
		}
	}
	return &DeviceStore{
		known: k,
		seen:  make(map[string]time.Time),
	}
}

func (s *DeviceStore) Lookup(_ context.Context, deviceID string) (store.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.known[deviceID]
	return store.DeviceRecord{DeviceID: deviceID, Known: ok, Room: room}, nil
}

func (s *DeviceStore) MarkSeen(_ context.Context, deviceID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[deviceID] = t
	return nil
}
