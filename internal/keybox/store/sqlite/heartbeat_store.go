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

type HeartbeatStore struct {
	conn   *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(conn *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{conn: conn, writer: writer}
}

func (s *HeartbeatStore) UpsertHeartbeat(ctx context.Context, deviceID string, rec store.HeartbeatRecord) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := rec.ReceivedAt.UTC().UnixMilli()

	fw := strings.TrimSpace(rec.Request.FirmwareVersion)
	ip := strings.TrimSpace(rec.Request.IP)

	var rssi any
	if rec.Request.RSSIDbm != nil {
		rssi = *rec.Request.RSSIDbm
	}

	var uptimeMs any
	if rec.Request.UptimeSeconds != 0 {
		uptimeMs = int64(rec.Request.UptimeSeconds) * 1000
	}

	var seq any
	if rec.Request.Sequence != 0 {
		seq = rec.Request.Sequence
	}

	var freeHeap any
	if rec.Request.FreeHeapBytes != 0 {
		freeHeap = rec.Request.FreeHeapBytes
	}

	var doorClosed any
	if rec.Request.DoorClosed != nil {
		if *rec.Request.DoorClosed {
			doorClosed = 1
		} else {
			doorClosed = 0
		}
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, recvMs); err != nil {
			return err
		}

		// Append-only history row.
		if _, err := tx.ExecContext(ctx, `
INSERT INTO device_heartbeats(
  device_id, received_at_ms, seq, uptime_ms, fw_version, wifi_rssi, ip, free_heap_bytes, door_closed
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`, deviceID, recvMs, seq, uptimeMs, fw, rssi, ip, freeHeap, doorClosed); err != nil {
			return fmt.Errorf("UpsertHeartbeat insert: %w", err)
		}

		// Snapshot on the device row for cheap "current status" queries.
		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET last_seen_at_ms = ?,
    last_ip = ?,
    last_fw_version = ?,
    last_wifi_rssi = ?,
    updated_at_ms = ?
WHERE device_id = ?;
`, recvMs, ip, fw, rssi, recvMs, deviceID); err != nil {
			return fmt.Errorf("UpsertHeartbeat update snapshot: %w", err)
		}

		return nil
	})
}

// PruneOlderThan deletes heartbeat rows received before the cutoff,
// returning the number of rows removed. Range-scans idx_heartbeats_time.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM device_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
