// Package sqlite provides a SQLite implementation of store.Store using
// database/sql over the pure-Go modernc.org/sqlite driver.
//
// The database is opened with a single connection so transactions serialize
// naturally; WAL mode and a busy timeout keep concurrent readers from
// erroring out. Timestamps are stored as nanosecond unix epochs in nullable
// INTEGER columns, which keeps the null state of the wake-up column cheap
// to query.
//
// Column names for the scheduling fields are configurable through
// job.FieldMap, so the store can run against a table whose schema it does
// not own.
package sqlite
