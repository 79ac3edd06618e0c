package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/store/sqlite"
)

func TestSessionStore_BorrowReturnCycle(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewSessionStore(conn, writer)
	ctx := context.Background()

	open, err := s.HasOpen(ctx, "AA112233", "205")
	if err != nil {
		t.Fatalf("HasOpen: %v", err)
	}
	if open {
		t.Fatal("expected no open session in fresh db")
	}

	now := time.Now().UTC()
	if err := s.Open(ctx, "sess-1", "AA112233", "205", now); err != nil {
		t.Fatalf("Open: %v", err)
	}

	open, err = s.HasOpen(ctx, "AA112233", "205")
	if err != nil {
		t.Fatalf("HasOpen: %v", err)
	}
	if !open {
		t.Fatal("expected open session after Open")
	}

	closed, err := s.CloseOpen(ctx, "AA112233", "205", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("CloseOpen: %v", err)
	}
	if !closed {
		t.Fatal("expected CloseOpen to close the session")
	}

	open, err = s.HasOpen(ctx, "AA112233", "205")
	if err != nil {
		t.Fatalf("HasOpen: %v", err)
	}
	if open {
		t.Fatal("expected no open session after return")
	}
}

func TestSessionStore_CloseWithoutOpen(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewSessionStore(conn, writer)

	closed, err := s.CloseOpen(context.Background(), "AA112233", "205", time.Now().UTC())
	if err != nil {
		t.Fatalf("CloseOpen: %v", err)
	}
	if closed {
		t.Error("expected closed=false when no session is open")
	}
}

func TestSessionStore_RoomsAreIndependent(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewSessionStore(conn, writer)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Open(ctx, "sess-1", "AA112233", "205", now); err != nil {
		t.Fatalf("Open: %v", err)
	}

	open, err := s.HasOpen(ctx, "AA112233", "206")
	if err != nil {
		t.Fatalf("HasOpen: %v", err)
	}
	if open {
		t.Error("session in room 205 must not appear open for room 206")
	}
}

func TestSessionStore_ClosesNewestOpenSession(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewSessionStore(conn, writer)
	ctx := context.Background()
	base := time.Now().UTC().Add(-2 * time.Hour)

	// Two dangling opens for the same tag (e.g. missed return). CloseOpen
	// must close the newest one.
	if err := s.Open(ctx, "sess-1", "AA112233", "205", base); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Open(ctx, "sess-2", "AA112233", "205", base.Add(time.Hour)); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := s.CloseOpen(ctx, "AA112233", "205", time.Now().UTC()); err != nil {
		t.Fatalf("CloseOpen: %v", err)
	}

	var closedID string
	if err := conn.QueryRow(`
SELECT session_id FROM key_sessions WHERE closed_at_ms IS NOT NULL;
`).Scan(&closedID); err != nil {
		t.Fatalf("query closed session: %v", err)
	}
	if closedID != "sess-2" {
		t.Errorf("expected newest session sess-2 closed, got %q", closedID)
	}
}
