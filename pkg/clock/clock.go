// Package clock drives the discrete tick counter shared by a simulation's
// oracle, traders, and protocol.
package clock

// Clock is a bounded tick counter. It starts at 0 and Step advances it by
// one, reporting whether the new position is still inside [0, periods).
type Clock struct {
	periods int
	tick    int
}

// New returns a Clock bounded to the given number of periods. periods must
// be positive; New panics otherwise since a non-positive horizon can never
// produce a valid simulation.
func New(periods int) *Clock {
	if periods <= 0 {
		panic("clock: periods must be positive")
	}
	return &Clock{periods: periods}
}

// Now returns the current tick.
func (c *Clock) Now() int {
	return c.tick
}

// Periods returns the configured horizon.
func (c *Clock) Periods() int {
	return c.periods
}

// Step advances the clock by one tick and reports whether the simulation
// should continue, i.e. whether the new tick is still within the horizon.
func (c *Clock) Step() bool {
	c.tick++
	return c.tick < c.periods
}
