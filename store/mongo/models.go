package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// toDoc builds the job document with the configured field names. Nullable
// times serialize to BSON null so the due filter's $ne: null works.
func toDoc(j *job.Job, fields job.FieldMap) bson.M {
	return bson.M{
		"_id":              j.ID.String(),
		"name":             j.Name,
		"queue":            j.Queue,
		"payload":          j.Payload,
		fields.SleepUntil:  timeOrNil(j.SleepUntil),
		fields.Interval:    j.Interval,
		fields.RepeatUntil: timeOrNil(j.RepeatUntil),
		fields.AutoRemove:  j.AutoRemove,
		"created_at":       j.CreatedAt,
		"updated_at":       j.UpdatedAt,
	}
}

// fromDoc rebuilds a job from a decoded document.
func fromDoc(doc bson.M, fields job.FieldMap) (*job.Job, error) {
	rawID, _ := doc["_id"].(string)
	parsedID, err := id.ParseJobID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scheduler/mongo: parse job id %q: %w", rawID, err)
	}

	name, _ := doc["name"].(string)
	queue, _ := doc["queue"].(string)
	intervalExpr, _ := doc[fields.Interval].(string)
	autoRemove, _ := doc[fields.AutoRemove].(bool)

	j := &job.Job{
		ID:          parsedID,
		Name:        name,
		Queue:       queue,
		Payload:     asBytes(doc["payload"]),
		SleepUntil:  asTimePtr(doc[fields.SleepUntil]),
		Interval:    intervalExpr,
		RepeatUntil: asTimePtr(doc[fields.RepeatUntil]),
		AutoRemove:  autoRemove,
	}
	if t := asTimePtr(doc["created_at"]); t != nil {
		j.CreatedAt = *t
	}
	if t := asTimePtr(doc["updated_at"]); t != nil {
		j.UpdatedAt = *t
	}
	return j, nil
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// asTimePtr handles both raw time.Time values and the driver's
// bson.DateTime decoding.
func asTimePtr(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		u := t.UTC()
		return &u
	case bson.DateTime:
		u := t.Time().UTC()
		return &u
	default:
		return nil
	}
}

// asBytes handles both raw byte slices and the driver's bson.Binary
// decoding.
func asBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case bson.Binary:
		return b.Data
	default:
		return nil
	}
}
