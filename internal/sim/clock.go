package sim

import (
	"math"

	"github.com/aweeri/TLEscope/internal/epoch"
)

const (
	minMultiplier = 1.0 / (1 << 20)
	maxMultiplier = 1 << 20
)

// Clock is simulated time: an epoch advanced by wall-clock frame time
// scaled by Multiplier.
type Clock struct {
	Epoch      epoch.Epoch
	Multiplier float64
	Paused     bool
}

// NewClock starts a clock at e running at real time.
func NewClock(e epoch.Epoch) Clock {
	return Clock{Epoch: e.Normalize(), Multiplier: 1}
}

// Advance moves the clock by frameSeconds of wall time. It does nothing
// while paused.
func (c *Clock) Advance(frameSeconds float64) {
	if c.Paused || math.IsNaN(frameSeconds) || math.IsInf(frameSeconds, 0) {
		return
	}
	c.Epoch = c.Epoch.AddDays(frameSeconds * c.Multiplier / 86400.0)
}

// TogglePause flips Paused.
func (c *Clock) TogglePause() { c.Paused = !c.Paused }

// Faster doubles the multiplier.
func (c *Clock) Faster() { c.Multiplier = math.Min(c.Multiplier*2, maxMultiplier) }

// Slower halves the multiplier.
func (c *Clock) Slower() { c.Multiplier = math.Max(c.Multiplier/2, minMultiplier) }

// ResetSpeed returns to real time.
func (c *Clock) ResetSpeed() { c.Multiplier = 1 }

// ResetToNow jumps to the current wall-clock epoch.
func (c *Clock) ResetToNow() { c.Epoch = epoch.Now() }
