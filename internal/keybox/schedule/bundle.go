package schedule

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keyboxlab/keyboxd/internal/keybox/credential"
)

// Bundle is one full load of the schedule file: the academic term plus
// every room's validated slots.
type Bundle struct {
	AcademicYear string
	Semester     string
	LoadedAt     time.Time
	rooms        map[string][]TimeSlot
}

// SlotsFor returns the slots for a room, nil when the room is unknown.
func (b *Bundle) SlotsFor(room string) []TimeSlot {
	if b == nil {
		return nil
	}
	return b.rooms[room]
}

// Rooms returns the room codes present in the bundle.
func (b *Bundle) Rooms() []string {
	out := make([]string, 0, len(b.rooms))
	for r := range b.rooms {
		out = append(out, r)
	}
	return out
}

// File format, administered out-of-band:
//
//	term:
//	  academic_year: "2025-2026"
//	  semester: "1st"
//	rooms:
//	  - room: "205"
//	    slots:
//	      - days: [mon, wed]
//	        start: "08:00"
//	        end: "10:00"
//	        subject: "CS101"
//	        instructor: "A. Reyes"
//	        tags: ["AA112233"]
type bundleFile struct {
	Term struct {
		AcademicYear string `yaml:"academic_year"`
		Semester     string `yaml:"semester"`
	} `yaml:"term"`
	Rooms []struct {
		Room  string `yaml:"room"`
		Slots []struct {
			Days       []string `yaml:"days"`
			Start      string   `yaml:"start"`
			End        string   `yaml:"end"`
			Subject    string   `yaml:"subject"`
			Instructor string   `yaml:"instructor"`
			Tags       []string `yaml:"tags"`
		} `yaml:"slots"`
	} `yaml:"rooms"`
}

// Load reads and validates a schedule bundle file. Validation enforces the
// two structural invariants: every slot has a non-empty credential set and
// no two slots for the same room overlap on a shared weekday.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schedule bundle: %w", err)
	}
	defer f.Close()

	var bf bundleFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("decode schedule bundle %s: %w", path, err)
	}

	b := &Bundle{
		AcademicYear: bf.Term.AcademicYear,
		Semester:     bf.Term.Semester,
		LoadedAt:     time.Now().UTC(),
		rooms:        make(map[string][]TimeSlot, len(bf.Rooms)),
	}

	for _, room := range bf.Rooms {
		if room.Room == "" {
			return nil, fmt.Errorf("schedule bundle: room entry without a room code")
		}
		if _, dup := b.rooms[room.Room]; dup {
			return nil, fmt.Errorf("schedule bundle: room %q listed twice", room.Room)
		}

		slots := make([]TimeSlot, 0, len(room.Slots))
		for i, raw := range room.Slots {
			slot := TimeSlot{
				ID:         fmt.Sprintf("%s/%d", room.Room, i+1),
				Room:       room.Room,
				Subject:    raw.Subject,
				Instructor: raw.Instructor,
			}

			if len(raw.Days) == 0 {
				return nil, fmt.Errorf("room %s slot %d: no days", room.Room, i+1)
			}
			for _, d := range raw.Days {
				wd, err := parseDay(d)
				if err != nil {
					return nil, fmt.Errorf("room %s slot %d: %w", room.Room, i+1, err)
				}
				slot.Days = slot.Days.with(wd)
			}

			if slot.Start, err = parseMinute(raw.Start); err != nil {
				return nil, fmt.Errorf("room %s slot %d: %w", room.Room, i+1, err)
			}
			if slot.End, err = parseMinute(raw.End); err != nil {
				return nil, fmt.Errorf("room %s slot %d: %w", room.Room, i+1, err)
			}
			if slot.End <= slot.Start {
				return nil, fmt.Errorf("room %s slot %d: end %s not after start %s",
					room.Room, i+1, slot.End, slot.Start)
			}

			if len(raw.Tags) == 0 {
				return nil, fmt.Errorf("room %s slot %d: empty credential set", room.Room, i+1)
			}
			for _, tag := range raw.Tags {
				c, err := credential.FromHex(tag)
				if err != nil {
					return nil, fmt.Errorf("room %s slot %d: tag %q: %w", room.Room, i+1, tag, err)
				}
				slot.Tags = append(slot.Tags, c)
			}

			for _, prev := range slots {
				if slot.overlaps(prev) {
					return nil, fmt.Errorf("room %s: slot %s overlaps slot %s", room.Room, slot.ID, prev.ID)
				}
			}
			slots = append(slots, slot)
		}
		b.rooms[room.Room] = slots
	}

	return b, nil
}
