package actuator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyboxlab/keyboxd/internal/keybox/actuator"
)

var t0 = time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

func TestRequestPulse_FromLocked(t *testing.T) {
	c := actuator.NewController(5*time.Second, 10*time.Second)

	pulse, ok := c.RequestPulse("205", t0)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, pulse.Duration)
	assert.Equal(t, actuator.Unlocking, c.State("205", t0))
}

func TestStateProgression(t *testing.T) {
	c := actuator.NewController(5*time.Second, 10*time.Second)
	_, ok := c.RequestPulse("205", t0)
	require.True(t, ok)

	assert.Equal(t, actuator.Unlocking, c.State("205", t0.Add(4*time.Second)))
	assert.Equal(t, actuator.Cooldown, c.State("205", t0.Add(5*time.Second)))
	assert.Equal(t, actuator.Cooldown, c.State("205", t0.Add(14*time.Second)))
	assert.Equal(t, actuator.Locked, c.State("205", t0.Add(15*time.Second)))
}

func TestRequestPulse_SuppressedWhileUnlocking(t *testing.T) {
	c := actuator.NewController(5*time.Second, 10*time.Second)
	_, ok := c.RequestPulse("205", t0)
	require.True(t, ok)

	_, ok = c.RequestPulse("205", t0.Add(2*time.Second))
	assert.False(t, ok)
}

func TestRequestPulse_SuppressedDuringCooldown(t *testing.T) {
	c := actuator.NewController(5*time.Second, 10*time.Second)
	_, ok := c.RequestPulse("205", t0)
	require.True(t, ok)

	_, ok = c.RequestPulse("205", t0.Add(8*time.Second))
	assert.False(t, ok)
}

// Pulses must never start closer than pulse+cooldown apart, regardless of
// how often the request comes in.
func TestRequestPulse_MinimumSpacing(t *testing.T) {
	c := actuator.NewController(5*time.Second, 10*time.Second)

	var starts []time.Time
	for i := 0; i < 200; i++ {
		now := t0.Add(time.Duration(i) * 500 * time.Millisecond)
		if _, ok := c.RequestPulse("205", now); ok {
			starts = append(starts, now)
		}
	}

	require.Greater(t, len(starts), 1)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		// Gap between end of one pulse and start of the next must be at
		// least the cooldown.
		assert.GreaterOrEqual(t, gap, 15*time.Second)
	}
}

func TestRequestPulse_RoomsIndependent(t *testing.T) {
	c := actuator.NewController(5*time.Second, 10*time.Second)

	_, ok := c.RequestPulse("205", t0)
	require.True(t, ok)

	_, ok = c.RequestPulse("206", t0)
	assert.True(t, ok, "cooldown in one room must not affect another")
}

func TestRequestPulse_AvailableAfterCooldown(t *testing.T) {
	c := actuator.NewController(5*time.Second, 10*time.Second)
	_, ok := c.RequestPulse("205", t0)
	require.True(t, ok)

	_, ok = c.RequestPulse("205", t0.Add(15*time.Second))
	assert.True(t, ok)
}

func TestZeroCooldown(t *testing.T) {
	c := actuator.NewController(5*time.Second, 0)
	_, ok := c.RequestPulse("205", t0)
	require.True(t, ok)

	// Still suppressed while the pulse itself is active.
	_, ok = c.RequestPulse("205", t0.Add(time.Second))
	assert.False(t, ok)

	_, ok = c.RequestPulse("205", t0.Add(5*time.Second))
	assert.True(t, ok)
}
