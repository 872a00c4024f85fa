// Package clock provides a substitutable time source.
//
// Every expiration computation takes a Clock explicitly. Production code
// passes System; tests pass a Simulated clock pinned to a known instant, so
// nothing ever mutates process-wide time.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is a source of the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// NewSystem returns the wall clock.
func NewSystem() Clock { return System{} }

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Simulated is a clock whose time only moves when told to.
// It is safe for concurrent use.
type Simulated struct {
	nanos atomic.Int64
}

// NewSimulated creates a simulated clock set to the given instant.
func NewSimulated(initial time.Time) *Simulated {
	c := &Simulated{}
	c.SetSystemTime(initial)
	return c
}

// Now returns the simulated time in UTC.
func (c *Simulated) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

// SetSystemTime moves the clock to t.
func (c *Simulated) SetSystemTime(t time.Time) {
	c.nanos.Store(t.UnixNano())
}

// Advance moves the clock forward by d.
func (c *Simulated) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

// Ensure implementations satisfy the interface.
var (
	_ Clock = System{}
	_ Clock = (*Simulated)(nil)
)
