// Package system provides the wall-clock implementation of scout.Clock.
package system

import "time"

// Clock returns the current system time.
type Clock struct{}

// New creates a system Clock.
func New() Clock { return Clock{} }

// Now returns time.Now().
func (Clock) Now() time.Time { return time.Now() }
