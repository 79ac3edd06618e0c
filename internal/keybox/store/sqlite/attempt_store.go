package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/keyboxlab/keyboxd/internal/db"
	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

type AttemptStore struct {
	conn   *sql.DB
	writer *dbpkg.Worker
}

func NewAttemptStore(conn *sql.DB, writer *dbpkg.Worker) *AttemptStore {
	return &AttemptStore{conn: conn, writer: writer}
}

func (s *AttemptStore) RecordAttempt(ctx context.Context, rec store.AttemptRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	decidedMs := rec.DecidedAt.UTC().UnixMilli()

	var requestedMs any
	if rec.RequestedAt != nil {
		requestedMs = rec.RequestedAt.UTC().UnixMilli()
	}

	var doorClosed any
	if rec.DoorClosed != nil {
		if *rec.DoorClosed {
			doorClosed = 1
		} else {
			doorClosed = 0
		}
	}

	granted := 0
	if rec.Granted {
		granted = 1
	}
	suppressed := 0
	if rec.Suppressed {
		suppressed = 1
	}

	origin := rec.Origin
	if origin == "" {
		origin = "online"
	}

	// OR IGNORE keeps re-uploaded offline batches idempotent: entries carry
	// deterministic IDs, so a duplicate insert is a no-op rather than an error.
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO access_attempts(
  attempt_id, device_id, room_code, tag_uid, instructor,
  granted, suppressed, reason, action, origin,
  door_closed, requested_at_ms, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.DeviceID, rec.Room, rec.Tag, rec.Instructor,
			granted, suppressed, rec.Reason, rec.Action, origin,
			doorClosed, requestedMs, decidedMs,
		); err != nil {
			return fmt.Errorf("RecordAttempt insert: %w", err)
		}
		return nil
	})
}
