// Package actuator models the solenoid lock on each keybox compartment as
// a state machine: Locked, Unlocking while the relay is energized, then a
// cooldown before the next pulse may start. The cooldown bounds the
// solenoid duty cycle and prevents relay chatter from rapid re-scans.
package actuator

import (
	"sync"
	"time"
)

// LockState is the compartment lock position as the server tracks it.
type LockState int

const (
	Locked LockState = iota
	Unlocking
	Cooldown
)

func (s LockState) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Cooldown:
		return "cooldown"
	}
	return "unknown"
}

// Pulse is a command for the device: energize the relay for Duration.
type Pulse struct {
	Duration time.Duration
}

// Controller owns one LockState per room. State is derived from the start
// time of the last granted pulse, so no timers run and transitions are a
// pure function of the clock passed in by the caller.
type Controller struct {
	mu        sync.Mutex
	pulse     time.Duration
	cooldown  time.Duration
	lastPulse map[string]time.Time // room -> start of last granted pulse
}

func NewController(pulse, cooldown time.Duration) *Controller {
	if pulse <= 0 {
		pulse = 5 * time.Second
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &Controller{
		pulse:     pulse,
		cooldown:  cooldown,
		lastPulse: make(map[string]time.Time),
	}
}

// PulseDuration returns the configured relay hold time.
func (c *Controller) PulseDuration() time.Duration { return c.pulse }

// RequestPulse asks for a relay pulse for the room at the given instant.
// It returns the pulse and true only when the compartment is Locked; while
// Unlocking or in Cooldown the request is suppressed and no state changes.
func (c *Controller) RequestPulse(room string, now time.Time) (Pulse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked(room, now) != Locked {
		return Pulse{}, false
	}
	c.lastPulse[room] = now
	return Pulse{Duration: c.pulse}, true
}

// State reports the compartment state at the given instant.
func (c *Controller) State(room string, now time.Time) LockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(room, now)
}

func (c *Controller) stateLocked(room string, now time.Time) LockState {
	start, ok := c.lastPulse[room]
	if !ok || !now.Before(start.Add(c.pulse+c.cooldown)) {
		return Locked
	}
	if now.Before(start.Add(c.pulse)) {
		return Unlocking
	}
	return Cooldown
}
