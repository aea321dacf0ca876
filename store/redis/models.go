package redis

import (
	"fmt"
	"time"

	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// jobToMap flattens a job into Hash fields. Nullable times serialize to
// the empty string.
func jobToMap(j *job.Job) map[string]any {
	return map[string]any{
		"id":           j.ID.String(),
		"name":         j.Name,
		"queue":        j.Queue,
		"payload":      string(j.Payload),
		"sleep_until":  formatTime(j.SleepUntil),
		"interval":     j.Interval,
		"repeat_until": formatTime(j.RepeatUntil),
		"auto_remove":  boolField(j.AutoRemove),
		"created_at":   j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   j.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// jobFromMap rebuilds a job from Hash fields.
func jobFromMap(m map[string]string) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: parse job id %q: %w", m["id"], err)
	}

	sleepUntil, err := parseTime(m["sleep_until"])
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: parse sleep_until: %w", err)
	}
	repeatUntil, err := parseTime(m["repeat_until"])
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: parse repeat_until: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, m["created_at"])
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, m["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: parse updated_at: %w", err)
	}

	var payload []byte
	if m["payload"] != "" {
		payload = []byte(m["payload"])
	}

	return &job.Job{
		ID:          parsedID,
		Name:        m["name"],
		Queue:       m["queue"],
		Payload:     payload,
		SleepUntil:  sleepUntil,
		Interval:    m["interval"],
		RepeatUntil: repeatUntil,
		AutoRemove:  m["auto_remove"] == "1",
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
