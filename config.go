package scheduler

import "time"

// Config holds timing and scoping configuration for a Scheduler.
type Config struct {
	// Queue is the logical partition of the table this instance claims
	// from. Empty is the default queue.
	Queue string

	// NextDelay is the pause at the top of every tick before attempting a
	// claim.
	NextDelay time.Duration

	// IdleDelay is the additional pause after a tick that found no due row.
	IdleDelay time.Duration

	// ReprocessDelay is the minimum distance into the future an overdue
	// recurring row is re-armed to (see interval.Calculator).
	ReprocessDelay time.Duration

	// LockDuration is how far into the future a claim pushes a row's
	// sleep-until value. It must exceed the callback's worst-case duration:
	// once it elapses, another instance may re-claim the row even if the
	// callback is still running, and nothing detects the double
	// processing. It is also the recovery window after a crash.
	LockDuration time.Duration
}

// DefaultConfig returns a Config with the default timings.
func DefaultConfig() Config {
	return Config{
		NextDelay:      0,
		IdleDelay:      10 * time.Second,
		ReprocessDelay: 0,
		LockDuration:   10 * time.Minute,
	}
}
