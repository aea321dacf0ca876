// Package job defines the job row entity and the persistence contract the
// scheduler runs against.
//
// A job is a single row in a persisted table. Its scheduling state lives in
// one nullable timestamp: SleepUntil. A non-null SleepUntil at or before the
// current time makes the row due; a future value means the row is either
// scheduled or temporarily locked by a scheduler instance; null means the
// row is inert and will never be picked up again unless reset externally.
//
// Recurrence is declared per row with a cron expression (Interval), bounded
// by an optional RepeatUntil timestamp. AutoRemove selects deletion over
// going inert once no further occurrence exists.
//
// Store is the contract backends implement. Claim atomicity is the only
// correctness mechanism preventing two scheduler instances from processing
// the same row, so Transact must execute its function as one atomic unit
// with respect to concurrent transactions issuing the same queries.
package job
