// Package lock claims due job rows for exclusive processing.
//
// A claim is a write of now+lockDuration into the row's SleepUntil: the row
// stops being due, so no other instance picks it up until the lock elapses.
// Lock expiry is also the only crash recovery: if an instance dies mid
// processing, the row falls back into the past and is claimed again.
package lock

import (
	"context"
	"time"

	"github.com/bobo-le/typeorm-scheduler/job"
)

// Acquirer atomically finds one due row and locks it.
type Acquirer struct {
	store        job.Store
	queue        string
	lockDuration time.Duration
}

// NewAcquirer creates an Acquirer claiming rows from the given queue.
// lockDuration must exceed the callback's worst-case duration or another
// instance may re-claim a row still in flight; nothing here detects that.
func NewAcquirer(store job.Store, queue string, lockDuration time.Duration) *Acquirer {
	return &Acquirer{
		store:        store,
		queue:        queue,
		lockDuration: lockDuration,
	}
}

// Claim finds one due row, writes the lock into it, and returns the
// pre-lock snapshot so callers see the real due-time data rather than the
// temporary lock value. It returns nil when no row is due.
//
// Stores implementing job.Claimer perform the claim natively; otherwise the
// find and the lock write run inside one store transaction. Either way the
// two steps are indivisible with respect to concurrent claims.
func (a *Acquirer) Claim(ctx context.Context) (*job.Job, error) {
	now := time.Now().UTC()
	lockUntil := now.Add(a.lockDuration)

	if c, ok := a.store.(job.Claimer); ok {
		return c.ClaimDue(ctx, a.queue, now, lockUntil)
	}

	var claimed *job.Job
	err := a.store.Transact(ctx, func(tx job.Tx) error {
		j, err := tx.FindDue(ctx, a.queue, now)
		if err != nil || j == nil {
			return err
		}
		if err := tx.SetSleepUntil(ctx, j.ID, &lockUntil); err != nil {
			return err
		}
		claimed = j // FindDue returned a detached pre-lock copy.
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
