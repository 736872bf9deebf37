// Package clock provides the simulation context shared by every component
// of one machine: a monotonically increasing cycle counter and the clock
// frequency used to convert cycles into simulated time.
package clock

import "github.com/sarchlab/akita/v4/sim"

// DefaultFreq is the R3000 reference clock.
const DefaultFreq = 25 * sim.MHz

// Clock counts simulated cycles.
type Clock struct {
	cycle uint64
	freq  sim.Freq
}

// New creates a clock at cycle zero running at freq. A zero freq selects
// DefaultFreq.
func New(freq sim.Freq) *Clock {
	if freq == 0 {
		freq = DefaultFreq
	}
	return &Clock{freq: freq}
}

// Now returns the current cycle.
func (c *Clock) Now() uint64 {
	return c.cycle
}

// Tick advances the clock by one cycle.
func (c *Clock) Tick() {
	c.cycle++
}

// Freq returns the clock frequency.
func (c *Clock) Freq() sim.Freq {
	return c.freq
}

// Seconds returns the simulated time elapsed since cycle zero.
func (c *Clock) Seconds() float64 {
	return float64(c.cycle) / float64(c.freq)
}

// Reset returns the clock to cycle zero.
func (c *Clock) Reset() {
	c.cycle = 0
}
