package redis

// Redis key naming conventions for scheduler data.
// All keys are prefixed with "scheduler:" to avoid collisions.

const keyPrefix = "scheduler:"

// jobKeyPrefix prefixes job Hash keys; the claim script concatenates it
// with an ID server-side.
const jobKeyPrefix = keyPrefix + "job:"

// jobKey returns the Hash key for a job entity: scheduler:job:{id}
func jobKey(id string) string { return jobKeyPrefix + id }

// queueKey returns the Sorted Set key of a queue's armed jobs, scored by
// wake-up time: scheduler:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// queueIDsKey returns the Set tracking every job ID in a queue, armed or
// inert: scheduler:queue_ids:{name}
func queueIDsKey(name string) string { return keyPrefix + "queue_ids:" + name }
