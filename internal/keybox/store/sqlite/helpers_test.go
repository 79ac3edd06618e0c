package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keyboxlab/keyboxd/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. Closed automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared-cache keeps the in-memory database alive even if sql.DB
	// recycles the underlying connection.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed with the test.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// commissionDevice inserts an enabled, commissioned device bound to a room.
func commissionDevice(t *testing.T, conn *sql.DB, deviceID, room string) {
	t.Helper()

	now := time.Now().UTC().UnixMilli()
	if room != "" {
		if _, err := conn.Exec(`
INSERT OR IGNORE INTO rooms(room_code, enabled, created_at_ms, updated_at_ms)
VALUES (?, 1, ?, ?);`, room, now, now); err != nil {
			t.Fatalf("commissionDevice: insert room: %v", err)
		}
	}

	if _, err := conn.Exec(`
INSERT INTO devices(device_id, room_code, enabled, commissioned_at_ms, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?, ?);`, deviceID, room, now, now, now); err != nil {
		t.Fatalf("commissionDevice: insert device: %v", err)
	}
}
