package job

import (
	"context"
	"time"

	"github.com/bobo-le/typeorm-scheduler/id"
)

// Tx is the handle a Store passes to a transaction function. Everything done
// through it commits or rolls back as one unit.
type Tx interface {
	// FindDue returns one arbitrary row in the given queue whose SleepUntil
	// is non-null and at or before now, or nil if no row is due. The
	// returned job is a detached copy: later writes in the same transaction
	// do not alter it.
	FindDue(ctx context.Context, queue string, now time.Time) (*Job, error)

	// SetSleepUntil writes the row's SleepUntil. Nil stores NULL, marking
	// the row inert.
	SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error

	// Delete removes the row.
	Delete(ctx context.Context, jobID id.JobID) error
}

// Store defines the persistence contract for job rows.
type Store interface {
	// CreateJob persists a new job row.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// Transact executes fn inside one atomic transaction. Claim correctness
	// rests on this: two concurrent transactions running FindDue followed
	// by SetSleepUntil must never both observe the same due row.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// SetSleepUntil writes the row's SleepUntil outside any transaction.
	// Nil stores NULL. Used by the rescheduler after the claim transaction
	// has committed.
	SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error

	// DeleteJob removes the row outside any transaction.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// CountJobs returns the number of rows in the given queue.
	CountJobs(ctx context.Context, queue string) (int64, error)
}

// Claimer is an optional fast path for stores whose native primitives
// already provide an atomic find-and-lock (Mongo's FindOneAndUpdate, a
// Redis Lua script). ClaimDue finds one due row in the queue, writes
// lockUntil into its SleepUntil, and returns the pre-lock snapshot, all
// indivisibly. It returns nil when no row is due.
//
// The lock acquirer upgrades to this interface when the store implements
// it; otherwise it composes the claim from Transact.
type Claimer interface {
	ClaimDue(ctx context.Context, queue string, now, lockUntil time.Time) (*Job, error)
}
