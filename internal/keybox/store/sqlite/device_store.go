package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/keyboxlab/keyboxd/internal/db"
	"github.com/keyboxlab/keyboxd/internal/keybox/store"
)

type DeviceStore struct {
	conn   *sql.DB
	writer *dbpkg.Worker
}

func NewDeviceStore(conn *sql.DB, writer *dbpkg.Worker) *DeviceStore {
	return &DeviceStore{conn: conn, writer: writer}
}

// Lookup treats "known" as commissioned, enabled, and not revoked; the
// room assignment rides along for the decision path.
func (s *DeviceStore) Lookup(ctx context.Context, deviceID string) (store.DeviceRecord, error) {
	deviceID = strings.TrimSpace(deviceID)
	rec := store.DeviceRecord{DeviceID: deviceID}
	if deviceID == "" {
		return rec, nil
	}

	var enabled int
	var room sql.NullString
	var commissioned, revoked sql.NullInt64

	err := s.conn.QueryRowContext(ctx, `
SELECT enabled, room_code, commissioned_at_ms, revoked_at_ms
FROM devices
WHERE device_id = ?;
`, deviceID).Scan(&enabled, &room, &commissioned, &revoked)

	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("Lookup query: %w", err)
	}

	rec.Known = enabled == 1 && commissioned.Valid && !revoked.Valid
	if room.Valid {
		rec.Room = room.String
	}
	return rec, nil
}

// MarkSeen ensures the device row exists (unknown devices start disabled)
// and refreshes its last_seen snapshot.
func (s *DeviceStore) MarkSeen(ctx context.Context, deviceID string, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, ms); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE device_id = ?;
`, ms, ms, deviceID); err != nil {
			return fmt.Errorf("MarkSeen update device: %w", err)
		}

		return nil
	})
}
