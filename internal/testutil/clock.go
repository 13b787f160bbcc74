// Package testutil provides deterministic fixtures for engine tests:
// a logical timestamp clock and id helpers that make replay output
// byte-identical across runs.
package testutil

import "sync"

// Clock hands out strictly increasing unix-millisecond timestamps for
// test fixtures, spaced a fixed step apart. Resettable so the same
// scenario can run repeatedly with identical values.
type Clock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewClock creates a clock starting at base milliseconds, advancing by
// step per call. A step of 0 defaults to 1000.
func NewClock(base, step int64) *Clock {
	if step == 0 {
		step = 1000
	}
	return &Clock{now: base, step: step}
}

// Next advances the clock and returns the new timestamp.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the latest handed-out timestamp without advancing.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to base.
func (c *Clock) Reset(base int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = base
}
