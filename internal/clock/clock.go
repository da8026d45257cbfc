// Package clock abstracts wall time so every TTL, cooldown and deferred
// action can be driven deterministically in tests.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time and one-shot timers.
//
// Implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from firing.
	// Returns false if the callback already fired or was stopped.
	Stop() bool
}

// Real is the production clock backed by package time.
type Real struct{}

// New returns the production clock.
func New() Clock {
	return Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Held wraps c so that AfterFunc callbacks never run. Now passes through.
func Held(c Clock) Clock {
	return held{c}
}

type held struct {
	Clock
}

func (held) AfterFunc(time.Duration, func()) Timer {
	return &heldTimer{}
}

type heldTimer struct {
	stopped atomic.Bool
}

func (t *heldTimer) Stop() bool {
	return t.stopped.CompareAndSwap(false, true)
}

// Millis converts t to Unix milliseconds, the unit used on the wire.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts Unix milliseconds back to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
