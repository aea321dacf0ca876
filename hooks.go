package scheduler

import (
	"context"
	"log/slog"

	"github.com/bobo-le/typeorm-scheduler/job"
)

// JobFunc is invoked once per claimed row with its pre-lock snapshot: the
// SleepUntil it carries is the real due time, not the temporary lock value.
// A returned error is routed to the error hook; it does not stop the loop
// and does not suppress rescheduling.
type JobFunc func(ctx context.Context, j *job.Job) error

// LifecycleFunc observes a scheduler lifecycle transition.
type LifecycleFunc func(ctx context.Context)

// ErrorFunc receives every error raised during claim, callback, or
// reschedule. The loop continues regardless.
type ErrorFunc func(ctx context.Context, err error)

// Hooks bundles the user callbacks. Any nil member is replaced by the
// matching default from DefaultHooks when the scheduler is constructed.
type Hooks struct {
	// OnJob handles a claimed job.
	OnJob JobFunc

	// OnStart fires when Start begins a run.
	OnStart LifecycleFunc

	// OnStop fires after Stop has drained the loop.
	OnStop LifecycleFunc

	// OnIdle fires once when a tick finds no due row after a streak of
	// ticks that did, not once per idle tick.
	OnIdle LifecycleFunc

	// OnError receives per-tick errors.
	OnError ErrorFunc
}

// DefaultHooks returns the default handlers: no-ops for everything except
// OnError, which logs through the given logger. Defaults are constructed
// here, once, rather than reaching for ambient globals at call time.
func DefaultHooks(logger *slog.Logger) Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return Hooks{
		OnJob:   func(_ context.Context, _ *job.Job) error { return nil },
		OnStart: func(_ context.Context) {},
		OnStop:  func(_ context.Context) {},
		OnIdle:  func(_ context.Context) {},
		OnError: func(_ context.Context, err error) {
			logger.Error("scheduler tick error", slog.String("error", err.Error()))
		},
	}
}

// merged fills nil members of h from the defaults.
func (h Hooks) merged(defaults Hooks) Hooks {
	if h.OnJob == nil {
		h.OnJob = defaults.OnJob
	}
	if h.OnStart == nil {
		h.OnStart = defaults.OnStart
	}
	if h.OnStop == nil {
		h.OnStop = defaults.OnStop
	}
	if h.OnIdle == nil {
		h.OnIdle = defaults.OnIdle
	}
	if h.OnError == nil {
		h.OnError = defaults.OnError
	}
	return h
}
