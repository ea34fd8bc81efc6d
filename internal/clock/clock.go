// Package clock provides the engine's single authoritative time source.
//
// Every component that needs wall time or a latency measurement takes a
// Clock at construction rather than calling time.Now() inline, the same way
// components take a *slog.Logger or a config struct — so tests can swap in a
// fake clock instead of sleeping real wall time, and so every timestamp the
// engine produces is pinned to UTC (spec §9 "Timezone handling").
package clock

import "time"

// Clock is the authoritative wall-clock and monotonic-delta source (spec C1).
type Clock interface {
	// Now returns the current instant, always in UTC.
	Now() time.Time
	// Since returns the monotonic elapsed duration since t. Implementations
	// must use a monotonic reading, not wall-clock subtraction, so elapsed
	// durations are immune to wall-clock adjustments.
	Since(t time.Time) time.Duration
}

// Real is the production Clock backed by the system clock.
type Real struct{}

// New returns the production Clock.
func New() Real { return Real{} }

// Now returns time.Now() normalized to UTC. time.Now() already carries a
// monotonic reading alongside the wall clock, so Since(t) on a value
// returned from Now is a genuine monotonic delta.
func (Real) Now() time.Time { return time.Now().UTC() }

// Since returns time.Since(t).
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }
