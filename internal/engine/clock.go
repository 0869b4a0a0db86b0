package engine

import "sync/atomic"

// Clock issues object handle ids.
//
// Ids are strictly increasing and never reused, so a handle to a deleted
// object can never alias a newer one.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a new clock starting at 0. The first id is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next id is start+1.
// Used when restoring a workspace so fresh handles do not collide.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next id.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the last issued id without incrementing.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}
