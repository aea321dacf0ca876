package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bobo-le/typeorm-scheduler/interval"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// Rescheduler decides a processed row's disposition: re-armed for a future
// occurrence, set inert, or deleted. All three outcomes are direct writes
// by ID, strictly after the claim transaction has committed.
type Rescheduler struct {
	store  job.Store
	calc   *interval.Calculator
	logger *slog.Logger
}

// NewRescheduler creates a Rescheduler.
func NewRescheduler(store job.Store, calc *interval.Calculator, logger *slog.Logger) *Rescheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rescheduler{store: store, calc: calc, logger: logger}
}

// Reschedule finalizes a processed job from its pre-lock snapshot. No next
// occurrence means expiry: the row is deleted when AutoRemove is set,
// otherwise its SleepUntil becomes null. A next occurrence re-arms the row.
func (r *Rescheduler) Reschedule(ctx context.Context, j *job.Job) error {
	next := r.calc.NextStart(j, time.Now().UTC())

	switch {
	case next == nil && j.AutoRemove:
		r.logger.Debug("job expired, removing",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
		)
		return r.store.DeleteJob(ctx, j.ID)

	case next == nil:
		r.logger.Debug("job expired, marking inert",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
		)
		return r.store.SetSleepUntil(ctx, j.ID, nil)

	default:
		r.logger.Debug("job re-armed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.Time("sleep_until", *next),
		)
		return r.store.SetSleepUntil(ctx, j.ID, next)
	}
}
