// Package system provides a real clock implementation.
package system

import "time"

// Clock implements scout.Clock using time.Now. Job timestamps and cache
// expiry all flow through an injected clock so tests can control time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
