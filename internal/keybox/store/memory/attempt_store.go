package memory

import (
	"context"
	"sync"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

// AttemptStore is an in-memory append-only log of access decisions, for
// tests and dev environments.
type AttemptStore struct {
	mu       sync.Mutex
	attempts []store.AttemptRecord
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

func (s *AttemptStore) RecordAttempt(_ context.Context, rec store.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Duplicate IDs are dropped, matching the SQL store's insert-or-ignore
	// so re-uploaded offline batches stay idempotent.
	for _, have := range s.attempts {
		if have.ID == rec.ID {
			return nil
		}
	}
	s.attempts = append(s.attempts, rec)
	return nil
}

// Attempts returns a copy of all recorded attempts. Test-only helper.
func (s *AttemptStore) Attempts() []store.AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AttemptRecord, len(s.attempts))
	copy(out, s.attempts)
	return out
}
