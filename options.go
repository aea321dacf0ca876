package scheduler

import (
	"log/slog"
	"time"

	"github.com/bobo-le/typeorm-scheduler/job"
)

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithStore sets the persistence backend. Required.
func WithStore(s job.Store) Option {
	return func(sch *Scheduler) error {
		sch.store = s
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(sch *Scheduler) error {
		sch.logger = l
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(sch *Scheduler) error {
		sch.config = c
		return nil
	}
}

// WithHooks sets the user callbacks. Nil members keep their defaults.
func WithHooks(h Hooks) Option {
	return func(sch *Scheduler) error {
		sch.hooks = h
		return nil
	}
}

// WithQueue scopes the scheduler to one queue.
func WithQueue(q string) Option {
	return func(sch *Scheduler) error {
		sch.config.Queue = q
		return nil
	}
}

// WithNextDelay sets the pause at the top of every tick.
func WithNextDelay(d time.Duration) Option {
	return func(sch *Scheduler) error {
		sch.config.NextDelay = d
		return nil
	}
}

// WithIdleDelay sets the additional pause after a tick that found no row.
func WithIdleDelay(d time.Duration) Option {
	return func(sch *Scheduler) error {
		sch.config.IdleDelay = d
		return nil
	}
}

// WithReprocessDelay sets the re-arm floor for overdue recurring rows.
func WithReprocessDelay(d time.Duration) Option {
	return func(sch *Scheduler) error {
		sch.config.ReprocessDelay = d
		return nil
	}
}

// WithLockDuration sets how long a claimed row stays invisible to other
// instances.
func WithLockDuration(d time.Duration) Option {
	return func(sch *Scheduler) error {
		sch.config.LockDuration = d
		return nil
	}
}
