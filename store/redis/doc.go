// Package redis provides a Redis implementation of store.Store using
// go-redis/v9.
//
// Each job lives in a Hash; every queue keeps a Sorted Set of its armed
// job IDs scored by wake-up time, plus a plain Set of all its IDs for
// counting. Inert jobs stay in the Hash and the ID Set but leave the
// Sorted Set, so the due scan never sees them.
//
// The store implements job.Claimer with a Lua script, so a claim is a
// single atomic server-side step and the scheduler skips the generic
// transaction path entirely.
package redis
