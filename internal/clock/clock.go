// Package clock injects "now" so slot generation and temporal classification
// stay deterministic under test.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func System() Clock { return systemClock{} }

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) Clock { return fixedClock(t) }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }
