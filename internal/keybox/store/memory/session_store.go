package memory

import (
	"context"
	"sync"
	"time"
)

type openSession struct {
	id       string
	openedAt time.Time
}

// SessionStore keeps open key sessions keyed by (tag, room).
type SessionStore struct {
	mu   sync.Mutex
	open map[string]openSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{open: make(map[string]openSession)}
}

func sessionKey(tag, room string) string { return tag + "\x00" + room }

func (s *SessionStore) Open(_ context.Context, id, tag, room string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[sessionKey(tag, room)] = openSession{id: id, openedAt: at}
	return nil
}

func (s *SessionStore) CloseOpen(_ context.Context, tag, room string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey(tag, room)
	if _, ok := s.open[k]; !ok {
		return false, nil
	}
	delete(s.open, k)
	return true, nil
}

func (s *SessionStore) HasOpen(_ context.Context, tag, room string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[sessionKey(tag, room)]
	return ok, nil
}
