// Package system provides the wall clock used to stamp capture rows.
package system

import "time"

// Clock implements crawler.Clock using time.Now, in UTC at millisecond
// precision to match the timestamp columns rows are written to.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
