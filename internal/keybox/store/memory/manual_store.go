package memory

import (
	"context"
	"sync"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

type ManualCommandStore struct {
	mu       sync.Mutex
	commands []store.ManualCommandRecord
}

func NewManualCommandStore() *ManualCommandStore {
	return &ManualCommandStore{}
}

func (s *ManualCommandStore) Enqueue(_ context.Context, rec store.ManualCommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, rec)
	return nil
}

func (s *ManualCommandStore) LatestSince(_ context.Context, room string, since time.Time) (store.ManualCommandRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best store.ManualCommandRecord
	found := false
	for _, rec := range s.commands {
		if rec.Room != room || rec.IssuedAt.Before(since) {
			continue
		}
		if !found || rec.IssuedAt.After(best.IssuedAt) {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

func (s *ManualCommandStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.commands[:0]
	var deleted int64
	for _, rec := range s.commands {
		if rec.IssuedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.commands = kept
	return deleted, nil
}
