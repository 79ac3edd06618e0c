package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/keyboxlab/keyboxd/internal/db"
	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

type ManualCommandStore struct {
	conn   *sql.DB
	writer *dbpkg.Worker
}

func NewManualCommandStore(conn *sql.DB, writer *dbpkg.Worker) *ManualCommandStore {
	return &ManualCommandStore{conn: conn, writer: writer}
}

func (s *ManualCommandStore) Enqueue(ctx context.Context, rec store.ManualCommandRecord) error {
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO manual_commands(command_id, room_code, action, issued_by, note, issued_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, rec.ID, rec.Room, rec.Action, rec.IssuedBy, rec.Note, rec.IssuedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("Enqueue insert: %w", err)
		}
		return nil
	})
}

func (s *ManualCommandStore) LatestSince(ctx context.Context, room string, since time.Time) (store.ManualCommandRecord, bool, error) {
	var (
		rec      store.ManualCommandRecord
		issuedMs int64
	)
	err := s.conn.QueryRowContext(ctx, `
SELECT command_id, room_code, action, issued_by, note, issued_at_ms
FROM manual_commands
WHERE room_code = ? AND issued_at_ms >= ?
ORDER BY issued_at_ms DESC
LIMIT 1;
`, room, since.UTC().UnixMilli()).Scan(&rec.ID, &rec.Room, &rec.Action, &rec.IssuedBy, &rec.Note, &issuedMs)

	if err == sql.ErrNoRows {
		return store.ManualCommandRecord{}, false, nil
	}
	if err != nil {
		return store.ManualCommandRecord{}, false, fmt.Errorf("LatestSince query: %w", err)
	}

	rec.IssuedAt = time.UnixMilli(issuedMs).UTC()
	return rec, true, nil
}

func (s *ManualCommandStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM manual_commands
WHERE issued_at_ms < ?;
`, cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
