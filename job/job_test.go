package job_test

import (
	"testing"
	"time"

	"github.com/bobo-le/typeorm-scheduler/job"
)

func TestDueRequiresBothConditions(t *testing.T) {
	now := time.Now().UTC()

	j := job.New("due", now.Add(-time.Second))
	if !j.Due(now) {
		t.Fatal("past SleepUntil should be due")
	}

	j = job.New("boundary", now)
	if !j.Due(now) {
		t.Fatal("SleepUntil equal to now should be due")
	}

	j = job.New("future", now.Add(time.Second))
	if j.Due(now) {
		t.Fatal("future SleepUntil should not be due")
	}

	j.SleepUntil = nil
	if j.Due(now) {
		t.Fatal("nil SleepUntil should never be due")
	}
}

func TestNewAppliesOptions(t *testing.T) {
	until := time.Now().UTC().Add(time.Hour)
	j := job.New("opts", time.Now().UTC(),
		job.WithQueue("reports"),
		job.WithPayload([]byte("x")),
		job.WithInterval("@every 1m"),
		job.WithRepeatUntil(until),
		job.WithAutoRemove(),
	)

	if j.ID.IsNil() {
		t.Fatal("New did not assign an ID")
	}
	if j.Queue != "reports" || string(j.Payload) != "x" {
		t.Fatalf("options not applied: %+v", j)
	}
	if !j.Recurring() {
		t.Fatal("job with interval should be recurring")
	}
	if j.RepeatUntil == nil || !j.RepeatUntil.Equal(until) {
		t.Fatalf("RepeatUntil = %v, want %v", j.RepeatUntil, until)
	}
	if !j.AutoRemove {
		t.Fatal("AutoRemove not applied")
	}

	if job.New("bare", time.Now()).Recurring() {
		t.Fatal("job without interval should not be recurring")
	}
}

func TestCloneIsDeep(t *testing.T) {
	j := job.New("orig", time.Now().UTC(), job.WithPayload([]byte("abc")))
	cp := j.Clone()

	*cp.SleepUntil = cp.SleepUntil.Add(time.Hour)
	cp.Payload[0] = 'z'

	if j.SleepUntil.Equal(*cp.SleepUntil) {
		t.Fatal("clone shares SleepUntil storage")
	}
	if j.Payload[0] != 'a' {
		t.Fatal("clone shares payload storage")
	}
}
