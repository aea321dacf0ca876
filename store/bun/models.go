package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:scheduler_jobs"`

	ID          string     `bun:"id,pk"`
	Name        string     `bun:"name,notnull,default:''"`
	Queue       string     `bun:"queue,notnull,default:''"`
	Payload     []byte     `bun:"payload,type:bytea"`
	SleepUntil  *time.Time `bun:"sleep_until"`
	Interval    string     `bun:"interval,notnull,default:''"`
	RepeatUntil *time.Time `bun:"repeat_until"`
	AutoRemove  bool       `bun:"auto_remove,notnull,default:false"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:          j.ID.String(),
		Name:        j.Name,
		Queue:       j.Queue,
		Payload:     j.Payload,
		SleepUntil:  j.SleepUntil,
		Interval:    j.Interval,
		RepeatUntil: j.RepeatUntil,
		AutoRemove:  j.AutoRemove,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("scheduler/bun: parse job id %q: %w", m.ID, err)
	}
	return &job.Job{
		ID:          parsedID,
		Name:        m.Name,
		Queue:       m.Queue,
		Payload:     m.Payload,
		SleepUntil:  m.SleepUntil,
		Interval:    m.Interval,
		RepeatUntil: m.RepeatUntil,
		AutoRemove:  m.AutoRemove,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
