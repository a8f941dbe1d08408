// Package system provides the wall clock behind snapshot timestamps.
package system

import "time"

// Clock implements menu.Clock. It stamps times in a fixed location so the
// menu day rolls over at the restaurant's midnight rather than UTC's.
type Clock struct {
	loc *time.Location
}

// New creates a Clock that reports UTC.
func New() *Clock {
	return NewIn(time.UTC)
}

// NewIn creates a Clock that reports time in loc. A nil loc means UTC.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
