// Package schedule holds the time-slot authorization data a keybox room is
// governed by: which credentials may take the key, on which weekdays,
// between which times. The data is provisioned out-of-band through a YAML
// bundle file and is read-only at runtime.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/credential"
)

// Days is a set of weekdays, one bit per time.Weekday.
type Days uint8

func (d Days) Has(wd time.Weekday) bool { return d&(1<<uint(wd)) != 0 }

func (d Days) with(wd time.Weekday) Days { return d | 1<<uint(wd) }

// Overlaps reports whether two day sets share at least one weekday.
func (d Days) Overlaps(o Days) bool { return d&o != 0 }

// Names returns the lowercase three-letter day names, Sunday first, for
// rendering into device bundles.
func (d Days) Names() []string {
	var out []string
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if d.Has(wd) {
			out = append(out, strings.ToLower(wd.String()[:3]))
		}
	}
	return out
}

// parseDay accepts full day names and three-letter abbreviations, any case.
func parseDay(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("unknown day %q", s)
}

// Minute is a minute-of-day clock value (0..1439).
type Minute uint16

func parseMinute(s string) (Minute, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad time %q (want HH:MM)", s)
	}
	return Minute(t.Hour()*60 + t.Minute()), nil
}

func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// TimeSlot binds a room and a weekly time window to the set of credentials
// authorized to take the room key during that window.
type TimeSlot struct {
	ID         string
	Room       string
	Days       Days
	Start      Minute // inclusive
	End        Minute // inclusive, matching the original controller
	Subject    string
	Instructor string
	Tags       []credential.Credential
}

// Covers reports whether the slot's window contains the given instant.
func (s TimeSlot) Covers(t time.Time) bool {
	if !s.Days.Has(t.Weekday()) {
		return false
	}
	m := Minute(t.Hour()*60 + t.Minute())
	return s.Start <= m && m <= s.End
}

// Authorizes reports whether the credential is in the slot's set.
func (s TimeSlot) Authorizes(c credential.Credential) bool {
	for _, tag := range s.Tags {
		if tag.Equal(c) {
			return true
		}
	}
	return false
}

// overlaps reports whether two slots for the same room collide: they share
// a weekday and their windows intersect.
func (s TimeSlot) overlaps(o TimeSlot) bool {
	if !s.Days.Overlaps(o.Days) {
		return false
	}
	return s.Start <= o.End && o.Start <= s.End
}
