// Package scheduler turns an ordinary persisted table of rows into a
// distributed job queue supporting one-shot delayed execution and recurring
// cron-style execution.
//
// Multiple scheduler instances may poll the same store concurrently. A row
// is claimed by atomically writing a temporary lock (a future value in the
// row's sleep-until column) inside one store transaction, so a due row is
// processed by exactly one instance per lock window. The scheduler is not a
// consensus layer: that transaction's atomicity is the entire correctness
// story, and lock expiry is the only crash recovery.
//
// # Quick Start
//
//	st := memory.New()
//	s, err := scheduler.New(
//	    scheduler.WithStore(st),
//	    scheduler.WithHooks(scheduler.Hooks{
//	        OnJob: func(ctx context.Context, j *job.Job) error {
//	            return handle(ctx, j)
//	        },
//	    }),
//	)
//	if err != nil { ... }
//	_ = s.Start(ctx)
//	defer s.Stop(ctx)
//
// Rows are inserted with job.New and Store.CreateJob, or by any external
// producer writing to the same table.
package scheduler
