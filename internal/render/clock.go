package render

import "time"

// MaxSpeed is the largest accepted time dilation factor.
const MaxSpeed = 3.0

// Clock is the animation clock fed to the shading stage. It accumulates
// wall time scaled by a speed factor, so changing speed never makes the
// animation jump.
type Clock struct {
	last    time.Time
	elapsed float64
	running bool
}

// NewClock returns a stopped clock at zero.
func NewClock() *Clock {
	return &Clock{}
}

// Start begins measuring from now. Elapsed time is kept.
func (c *Clock) Start(now time.Time) {
	c.last = now
	c.running = true
}

// Stop freezes the clock. Elapsed time is kept.
func (c *Clock) Stop() {
	c.running = false
}

// Reset zeroes the elapsed time.
func (c *Clock) Reset() {
	c.elapsed = 0
}

// Advance adds the wall time since the previous call multiplied by speed
// and returns the new elapsed seconds. A stopped clock starts on the first
// call. Speed is clamped to [0, MaxSpeed] and time going backwards is ignored.
func (c *Clock) Advance(now time.Time, speed float64) float64 {
	if !c.running {
		c.Start(now)
		return c.elapsed
	}
	dt := now.Sub(c.last).Seconds()
	c.last = now
	if dt <= 0 {
		return c.elapsed
	}
	if speed < 0 || speed != speed {
		speed = 0
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	c.elapsed += dt * speed
	return c.elapsed
}

// Elapsed returns the scaled seconds accumulated so far.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}
