package sdr

import (
	"time"
)

// driftFactor is the number of block durations the derived time may lag
// or lead the system clock before a resync is forced.
const driftFactor = 2

// Resync reports a clock correction. It is emitted at most once per
// Advance call and carries the drift magnitude for observability.
type Resync struct {
	Device string
	Drift  time.Duration
}

// Clock maps a device's cumulative received-sample count to absolute time.
// The mapping is anchored on the first block and drifts with the receiver's
// sample clock; when the derived time diverges from the system clock by
// more than driftFactor block durations, the anchor is reset. Prior derived
// timestamps are never corrected retroactively.
//
// Clock is not safe for concurrent use; each device supervisor owns one.
type Clock struct {
	device  string
	rate    float64
	origin  time.Time
	samples uint64
	offset  time.Duration
}

// NewClock creates a clock for the given device and sample rate.
func NewClock(device string, sampleRate int) *Clock {
	return &Clock{device: device, rate: float64(sampleRate)}
}

// Advance accounts for a block of n samples received at wall-clock time
// now and returns the derived start timestamp of that block. If the
// derived time has drifted more than driftFactor block durations from
// now, the clock re-anchors on now and a Resync event is returned; the
// current block is then timestamped one block duration before now.
func (c *Clock) Advance(n int, now time.Time) (time.Time, *Resync) {
	blockDur := time.Duration(float64(n) / c.rate * float64(time.Second))

	if c.origin.IsZero() {
		c.origin = now
		c.samples = uint64(n)
		c.offset = 0
		return c.origin, nil
	}

	ts := c.derived(c.samples)
	derivedEnd := c.derived(c.samples + uint64(n))
	c.offset = derivedEnd.Sub(now)

	if c.offset > driftFactor*blockDur || c.offset < -driftFactor*blockDur {
		drift := c.offset
		c.origin = now
		c.samples = 0
		c.offset = 0
		return now.Add(-blockDur), &Resync{Device: c.device, Drift: drift}
	}

	c.samples += uint64(n)
	return ts, nil
}

// Reset clears the anchor so the next block starts a fresh epoch. Called
// by the supervisor after a device restart.
func (c *Clock) Reset() {
	c.origin = time.Time{}
	c.samples = 0
	c.offset = 0
}

// Offset returns the most recently computed difference between derived
// time and the system clock.
func (c *Clock) Offset() time.Duration {
	return c.offset
}

func (c *Clock) derived(samples uint64) time.Time {
	return c.origin.Add(time.Duration(float64(samples) / c.rate * float64(time.Second)))
}
