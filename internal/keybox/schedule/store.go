package schedule

import (
	"sync"
	"time"
)

// Store holds the active bundle and answers the decision engine's lookup:
// which slot, if any, covers (room, instant). Lookups are a linear scan
// over a room's slots; bundles are tens of slots at most.
type Store struct {
	mu      sync.RWMutex
	bundle  *Bundle
	version int64
}

func NewStore(b *Bundle) *Store {
	s := &Store{}
	s.Replace(b)
	return s
}

// Replace swaps in a freshly loaded bundle and bumps the version so that
// device update checks and render caches notice the change.
func (s *Store) Replace(b *Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = b
	s.version++
}

// Version increases monotonically with every Replace.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Bundle returns the active bundle. Callers must treat it as read-only.
func (s *Store) Bundle() *Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}

// Lookup returns the slot covering the room at the given instant. The
// loader guarantees non-overlap, so at most one slot can match.
func (s *Store) Lookup(room string, t time.Time) (TimeSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, slot := range s.bundle.SlotsFor(room) {
		if slot.Covers(t) {
			return slot, true
		}
	}
	return TimeSlot{}, false
}

// DayMatch reports whether any slot for the room includes t's weekday.
// Used to distinguish "outside scheduled hours" from "no schedule today".
func (s *Store) DayMatch(room string, t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, slot := range s.bundle.SlotsFor(room) {
		if slot.Days.Has(t.Weekday()) {
			return true
		}
	}
	return false
}
