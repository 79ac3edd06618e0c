package service_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/schedule"
	"github.com/keyboxlab/keyboxd/internal/keybox/service"
)

func newScheduleStore(t *testing.T) *schedule.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	if err := os.WriteFile(path, []byte(testBundle), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	bundle, err := schedule.Load(path)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	return schedule.NewStore(bundle)
}

func TestSyncBundle_RendersRoomSchedule(t *testing.T) {
	st := newScheduleStore(t)
	svc := service.NewSyncService(st, time.Minute)

	resp := svc.Bundle("205")
	if !resp.OK {
		t.Fatal("expected ok")
	}
	if resp.Room != "205" {
		t.Errorf("room: want 205, got %q", resp.Room)
	}
	if resp.AcademicYear != "2025-2026" || resp.Semester != "1st" {
		t.Errorf("term: got %q / %q", resp.AcademicYear, resp.Semester)
	}
	if resp.Version != st.Version() {
		t.Errorf("version: want %d, got %d", st.Version(), resp.Version)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(resp.Slots))
	}

	slot := resp.Slots[0]
	if slot.Start != "08:00" || slot.End != "10:00" {
		t.Errorf("window: got %s-%s", slot.Start, slot.End)
	}
	if len(slot.Days) != 2 {
		t.Errorf("days: want 2, got %v", slot.Days)
	}
	if len(slot.Tags) != 1 || slot.Tags[0] != "AA112233" {
		t.Errorf("tags: want canonical UID list, got %v", slot.Tags)
	}
	if slot.Instructor != "A. Reyes" {
		t.Errorf("instructor: got %q", slot.Instructor)
	}
}

func TestSyncBundle_UnknownRoomIsEmpty(t *testing.T) {
	svc := service.NewSyncService(newScheduleStore(t), time.Minute)

	resp := svc.Bundle("999")
	if !resp.OK {
		t.Fatal("expected ok")
	}
	if len(resp.Slots) != 0 {
		t.Errorf("unknown room must render zero slots, got %d", len(resp.Slots))
	}
}

func TestSyncBundle_CacheMissesAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	if err := os.WriteFile(path, []byte(testBundle), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	bundle, err := schedule.Load(path)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	st := schedule.NewStore(bundle)
	svc := service.NewSyncService(st, time.Minute)

	before := svc.Bundle("205")

	// Swap in a bundle where the 205 slot window moved.
	updated, err := schedule.Load(writeUpdatedBundle(t))
	if err != nil {
		t.Fatalf("load updated: %v", err)
	}
	st.Replace(updated)

	after := svc.Bundle("205")
	if after.Version == before.Version {
		t.Fatal("version must change on reload")
	}
	if after.Slots[0].Start == before.Slots[0].Start {
		t.Error("reload must bypass the cached render")
	}
}

func writeUpdatedBundle(t *testing.T) string {
	t.Helper()
	const updated = `
term:
  academic_year: "2025-2026"
  semester: "1st"
rooms:
  - room: "205"
    slots:
      - days: [mon, wed]
        start: "09:00"
        end: "11:00"
        subject: "CS101"
        instructor: "A. Reyes"
        tags: ["AA112233"]
`
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("write updated bundle: %v", err)
	}
	return path
}

func TestCheckUpdates(t *testing.T) {
	st := newScheduleStore(t)
	svc := service.NewSyncService(st, time.Minute)

	current := svc.CheckUpdates(st.Version())
	if current.NeedsUpdate {
		t.Error("device at the current version needs no update")
	}

	stale := svc.CheckUpdates(st.Version() - 1)
	if !stale.NeedsUpdate {
		t.Error("stale device must be told to update")
	}
	if stale.Version != st.Version() {
		t.Errorf("version: want %d, got %d", st.Version(), stale.Version)
	}
}
