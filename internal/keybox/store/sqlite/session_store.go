package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/keyboxlab/keyboxd/internal/db"
)

type SessionStore struct {
	conn   *sql.DB
	writer *dbpkg.Worker
}

func NewSessionStore(conn *sql.DB, writer *dbpkg.Worker) *SessionStore {
	return &SessionStore{conn: conn, writer: writer}
}

func (s *SessionStore) Open(ctx context.Context, id, tag, room string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO key_sessions(session_id, tag_uid, room_code, opened_at_ms)
VALUES (?, ?, ?, ?);
`, id, tag, room, at.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("Open insert session: %w", err)
		}
		return nil
	})
}

func (s *SessionStore) CloseOpen(ctx context.Context, tag, room string, at time.Time) (bool, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var closed bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE key_sessions
SET closed_at_ms = ?
WHERE session_id = (
  SELECT session_id FROM key_sessions
  WHERE tag_uid = ? AND room_code = ? AND closed_at_ms IS NULL
  ORDER BY opened_at_ms DESC
  LIMIT 1
);
`, at.UTC().UnixMilli(), tag, room)
		if err != nil {
			return fmt.Errorf("CloseOpen update: %w", err)
		}
		n, _ := res.RowsAffected()
		closed = n > 0
		return nil
	})
	return closed, err
}

func (s *SessionStore) HasOpen(ctx context.Context, tag, room string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx, `
SELECT 1 FROM key_sessions
WHERE tag_uid = ? AND room_code = ? AND closed_at_ms IS NULL
LIMIT 1;
`, tag, room).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("HasOpen query: %w", err)
	}
	return true, nil
}
