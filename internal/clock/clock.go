// Package clock abstracts the two time operations the wish wall depends on:
// reading the current instant (store timestamps, countdown) and scheduling a
// one-shot callback (celebration completion). Production code uses Real();
// tests use NewFake() and drive time with Advance.
package clock

import "time"

// Clock is the subset of the time package used by timer-driven components.
type Clock interface {
	Now() time.Time
	// AfterFunc waits for d and then calls f in its own goroutine (Real) or
	// synchronously from Advance (Fake).
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports false when the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
