package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a starter room and a commissioned device so a fresh dev
// database can serve scans immediately. Idempotent.
func SeedDev(ctx context.Context, conn *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO rooms(room_code, description, enabled, created_at_ms, updated_at_ms)
VALUES ('205', 'Computer Lab 205', 1, ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT INTO devices(
  device_id, room_code, display_name,
  enabled, commissioned_at_ms,
  created_at_ms, updated_at_ms
) VALUES ('kbx-205', '205', 'Lab 205 Keybox', 1, ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  room_code = excluded.room_code,
  display_name = excluded.display_name,
  enabled = 1,
  commissioned_at_ms = COALESCE(devices.commissioned_at_ms, excluded.commissioned_at_ms),
  updated_at_ms = excluded.updated_at_ms;
`, now, now, now); err != nil {
		return fmt.Errorf("seed device kbx-205: %w", err)
	}

	return nil
}
