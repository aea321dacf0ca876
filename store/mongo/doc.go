// Package mongo provides a MongoDB implementation of store.Store using the
// official driver v2.
//
// The store implements job.Claimer: FindOneAndUpdate returning the
// pre-update document makes the whole claim one atomic server-side step,
// so the scheduler skips the generic transaction path. The generic path is
// still available through multi-document transactions for callers on a
// replica set.
//
// Documents are built field by field from job.FieldMap, so the scheduling
// field names are configurable the same way they are for the SQL stores.
package mongo
