// Package bunstore provides a Bun ORM implementation of store.Store for
// PostgreSQL. The claim scan drops to raw SQL for FOR UPDATE SKIP LOCKED;
// everything else goes through Bun's query builder.
//
// Bun maps columns through static struct tags, so this backend always uses
// the default column names. Use the postgres package when the scheduling
// columns need remapping through job.FieldMap.
package bunstore
