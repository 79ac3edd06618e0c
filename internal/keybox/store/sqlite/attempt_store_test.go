package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/store"
	"github.com/keyboxlab/keyboxd/internal/keybox/store/sqlite"
)

func TestRecordAttempt_InsertsRow(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewAttemptStore(conn, writer)
	ctx := context.Background()

	closed := true
	decidedAt := time.Now().UTC().Truncate(time.Millisecond)
	err := s.RecordAttempt(ctx, store.AttemptRecord{
		ID:         "attempt-1",
		DeviceID:   "kbx-205",
		Room:       "205",
		Tag:        "AA112233",
		Instructor: "A. Reyes",
		Granted:    true,
		Reason:     "scheduled",
		Action:     "borrow_key",
		DoorClosed: &closed,
		DecidedAt:  decidedAt,
	})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	var (
		granted, suppressed, doorClosed int
		reason, action, origin, tag     string
		decidedMs                       int64
	)
	err = conn.QueryRow(`
SELECT granted, suppressed, door_closed, reason, action, origin, tag_uid, decided_at_ms
FROM access_attempts WHERE attempt_id = 'attempt-1';
`).Scan(&granted, &suppressed, &doorClosed, &reason, &action, &origin, &tag, &decidedMs)
	if err != nil {
		t.Fatalf("query attempt: %v", err)
	}

	if granted != 1 {
		t.Error("expected granted=1")
	}
	if suppressed != 0 {
		t.Error("expected suppressed=0")
	}
	if doorClosed != 1 {
		t.Error("expected door_closed=1")
	}
	if reason != "scheduled" || action != "borrow_key" || tag != "AA112233" {
		t.Errorf("unexpected row: reason=%q action=%q tag=%q", reason, action, tag)
	}
	if origin != "online" {
		t.Errorf("expected default origin=online, got %q", origin)
	}
	if decidedMs != decidedAt.UnixMilli() {
		t.Errorf("decided_at_ms: want %d, got %d", decidedAt.UnixMilli(), decidedMs)
	}
}

func TestRecordAttempt_DuplicateIDInsertsOnce(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewAttemptStore(conn, writer)
	ctx := context.Background()

	rec := store.AttemptRecord{
		ID:        "attempt-dup",
		DeviceID:  "kbx-205",
		Room:      "205",
		Tag:       "AA112233",
		Granted:   true,
		Reason:    "scheduled",
		Origin:    "offline",
		DecidedAt: time.Now().UTC(),
	}
	if err := s.RecordAttempt(ctx, rec); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := s.RecordAttempt(ctx, rec); err != nil {
		t.Fatalf("RecordAttempt retry: %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM access_attempts WHERE attempt_id = 'attempt-dup';`).Scan(&n); err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row for the id, got %d", n)
	}
}

func TestRecordAttempt_DeniedWithEmptyTag(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewAttemptStore(conn, writer)

	err := s.RecordAttempt(context.Background(), store.AttemptRecord{
		ID:       "attempt-2",
		DeviceID: "kbx-205",
		Room:     "205",
		Granted:  false,
		Reason:   "malformed_credential",
		Origin:   "online",
	})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	var tag string
	var granted int
	if err := conn.QueryRow(`
SELECT tag_uid, granted FROM access_attempts WHERE attempt_id = 'attempt-2';
`).Scan(&tag, &granted); err != nil {
		t.Fatalf("query: %v", err)
	}
	if tag != "" {
		t.Errorf("expected empty tag for malformed read, got %q", tag)
	}
	if granted != 0 {
		t.Error("expected granted=0")
	}
}

func TestRecordAttempt_OfflineOriginPreserved(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewAttemptStore(conn, writer)

	requested := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	err := s.RecordAttempt(context.Background(), store.AttemptRecord{
		ID:          "attempt-3",
		DeviceID:    "kbx-205",
		Room:        "205",
		Tag:         "BB221144",
		Granted:     true,
		Reason:      "scheduled",
		Origin:      "offline",
		RequestedAt: &requested,
	})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	var origin string
	var requestedMs int64
	if err := conn.QueryRow(`
SELECT origin, requested_at_ms FROM access_attempts WHERE attempt_id = 'attempt-3';
`).Scan(&origin, &requestedMs); err != nil {
		t.Fatalf("query: %v", err)
	}
	if origin != "offline" {
		t.Errorf("expected origin=offline, got %q", origin)
	}
	if requestedMs != requested.UnixMilli() {
		t.Errorf("requested_at_ms: want %d, got %d", requested.UnixMilli(), requestedMs)
	}
}
