// Package interval computes a job's next due time from its cron expression.
//
// A nil result is the normal "stop recurring" signal, not an error: one-shot
// jobs, malformed expressions, and schedules exhausted before RepeatUntil
// all yield nil and the rescheduler expires the row.
package interval

import (
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/bobo-le/typeorm-scheduler/job"
)

// cronParser supports 6-field cron with seconds and descriptors like
// "@every 1s". Second resolution matters here: lock durations and recurrence
// are commonly sub-minute in tests and short-lived jobs.
var cronParser = cronlib.NewParser(
	cronlib.Second | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseExpression parses a cron expression and returns its schedule.
func ParseExpression(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Calculator computes next occurrences. Safe for concurrent use.
type Calculator struct {
	// reprocessDelay pushes the catch-up clamp slightly into the future so
	// an overdue recurring job is re-armed at now+delay instead of now.
	reprocessDelay time.Duration

	// parsed caches parsed cron expressions.
	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule
}

// NewCalculator creates a Calculator. reprocessDelay is the minimum distance
// into the future a re-armed occurrence may land (zero re-arms overdue jobs
// at the current instant).
func NewCalculator(reprocessDelay time.Duration) *Calculator {
	return &Calculator{
		reprocessDelay: reprocessDelay,
		parsed:         make(map[string]cronlib.Schedule),
	}
}

// NextStart returns the job's next due time, or nil if the job is done
// recurring: it has no interval, its expression does not parse, or no
// occurrence exists before RepeatUntil.
//
// The occurrence is computed from the job's pre-lock SleepUntil, so a slow
// callback does not shift the cadence. An occurrence already in the past is
// clamped forward to now (plus the reprocess delay): the job runs once
// immediately rather than either skipping or replaying every missed slot.
func (c *Calculator) NextStart(j *job.Job, now time.Time) *time.Time {
	if !j.Recurring() {
		return nil
	}

	after := now
	if j.SleepUntil != nil {
		after = *j.SleepUntil
	}

	sched, err := c.schedule(j.Interval)
	if err != nil {
		// Malformed expression reads as normal expiry.
		return nil
	}

	next := sched.Next(after)
	if next.IsZero() {
		return nil
	}
	if j.RepeatUntil != nil && !next.Before(*j.RepeatUntil) {
		return nil
	}

	if floor := now.Add(c.reprocessDelay); next.Before(floor) {
		next = floor
	}
	return &next
}

// schedule returns the cached parsed schedule for expr, parsing on first use.
func (c *Calculator) schedule(expr string) (cronlib.Schedule, error) {
	c.parsedMu.RLock()
	sched, ok := c.parsed[expr]
	c.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseExpression(expr)
	if err != nil {
		return nil, err
	}

	c.parsedMu.Lock()
	c.parsed[expr] = sched
	c.parsedMu.Unlock()
	return sched, nil
}
