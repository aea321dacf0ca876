package job

import (
	"time"

	"github.com/bobo-le/typeorm-scheduler/id"
)

// Job represents one row of the scheduled table.
type Job struct {
	ID      id.JobID `json:"id"`
	Name    string   `json:"name"`
	Queue   string   `json:"queue,omitempty"`
	Payload []byte   `json:"payload,omitempty"`

	// SleepUntil is the row's next due time. Nil means inert: the row is
	// never eligible for pickup again unless reset externally. While a
	// scheduler instance processes the row it holds a temporary lock value
	// (claim time + lock duration) here, not a real due time.
	SleepUntil *time.Time `json:"sleep_until,omitempty"`

	// Interval is a cron expression making the job recurring. Empty means
	// one-shot.
	Interval string `json:"interval,omitempty"`

	// RepeatUntil bounds recurrence: no occurrence is scheduled at or
	// beyond it. Nil means the job repeats indefinitely.
	RepeatUntil *time.Time `json:"repeat_until,omitempty"`

	// AutoRemove deletes the row on expiry instead of setting SleepUntil
	// to null.
	AutoRemove bool `json:"auto_remove"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Option configures a job created with New.
type Option func(*Job)

// WithQueue assigns the job to a named queue. Scheduler instances claim
// only rows whose queue matches their configured queue.
func WithQueue(q string) Option {
	return func(j *Job) { j.Queue = q }
}

// WithPayload attaches opaque application data carried to the callback.
func WithPayload(p []byte) Option {
	return func(j *Job) { j.Payload = p }
}

// WithInterval makes the job recurring with the given cron expression.
func WithInterval(expr string) Option {
	return func(j *Job) { j.Interval = expr }
}

// WithRepeatUntil bounds recurrence: no occurrence at or beyond t.
func WithRepeatUntil(t time.Time) Option {
	return func(j *Job) { j.RepeatUntil = &t }
}

// WithAutoRemove deletes the row on expiry instead of marking it inert.
func WithAutoRemove() Option {
	return func(j *Job) { j.AutoRemove = true }
}

// New creates a job due at sleepUntil with a fresh ID.
func New(name string, sleepUntil time.Time, opts ...Option) *Job {
	now := time.Now().UTC()
	j := &Job{
		ID:         id.NewJobID(),
		Name:       name,
		SleepUntil: &sleepUntil,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Due reports whether the row is eligible for claim at the given time:
// SleepUntil is non-null and not after now. Both conditions must hold.
func (j *Job) Due(now time.Time) bool {
	return j.SleepUntil != nil && !j.SleepUntil.After(now)
}

// Recurring reports whether the job carries a cron expression.
func (j *Job) Recurring() bool {
	return j.Interval != ""
}

// Clone returns a deep copy of the job. Stores return clones so callers can
// mutate results without racing with the store's own bookkeeping.
func (j *Job) Clone() *Job {
	cp := *j
	if j.SleepUntil != nil {
		t := *j.SleepUntil
		cp.SleepUntil = &t
	}
	if j.RepeatUntil != nil {
		t := *j.RepeatUntil
		cp.RepeatUntil = &t
	}
	if j.Payload != nil {
		cp.Payload = make([]byte, len(j.Payload))
		copy(cp.Payload, j.Payload)
	}
	return &cp
}
