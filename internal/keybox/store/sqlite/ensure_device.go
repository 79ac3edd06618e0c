package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureDevice guarantees a devices row exists so foreign keys from
// heartbeats hold even for devices the admin has not commissioned yet.
// New rows start disabled and uncommissioned; only the admin path (or the
// dev seeder) flips them on.
//
// Must run inside an existing transaction.
func ensureDevice(ctx context.Context, tx *sql.Tx, deviceID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO devices(
  device_id, enabled, created_at_ms, updated_at_ms
) VALUES (?, 0, ?, ?);
`, deviceID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureDevice %s: %w", deviceID, err)
	}
	return nil
}
