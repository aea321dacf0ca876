package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// claimScript atomically picks the earliest due member of a queue's Sorted
// Set, captures the Hash before locking it, then writes the lock value into
// both the Hash and the Set. Returns the pre-lock Hash as a flat field list,
// or false when nothing is due.
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
	return false
end
local id = ids[1]
local key = ARGV[4] .. id
local row = redis.call('HGETALL', key)
redis.call('HSET', key, 'sleep_until', ARGV[2], 'updated_at', ARGV[2])
redis.call('ZADD', KEYS[1], ARGV[3], id)
return row
`)

// score converts a wake-up time to a Sorted Set score. Milliseconds stay
// exactly representable in a float64.
func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// CreateJob stores the job Hash and indexes it in its queue.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("scheduler/redis: create check exists: %w", err)
	}
	if exists > 0 {
		return scheduler.ErrJobAlreadyExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, queueIDsKey(j.Queue), jID)
	if j.SleepUntil != nil {
		pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: score(*j.SleepUntil), Member: jID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler/redis: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m, err := s.client.HGetAll(ctx, jobKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: get job: %w", err)
	}
	if len(m) == 0 {
		return nil, scheduler.ErrJobNotFound
	}
	return jobFromMap(m)
}

// SetSleepUntil writes the wake-up field of one job; nil clears it and
// drops the job from the due index.
func (s *Store) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	jID := jobID.String()
	key := jobKey(jID)

	queue, err := s.client.HGet(ctx, key, "queue").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return scheduler.ErrJobNotFound
		}
		return fmt.Errorf("scheduler/redis: set sleep until get queue: %w", err)
	}

	pipe := s.client.TxPipeline()
	queueSleepWrite(ctx, pipe, queue, jID, until)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler/redis: set sleep until: %w", err)
	}
	return nil
}

// DeleteJob removes a job and its queue index entries.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	queue, err := s.client.HGet(ctx, key, "queue").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return scheduler.ErrJobNotFound
		}
		return fmt.Errorf("scheduler/redis: delete job get queue: %w", err)
	}

	pipe := s.client.TxPipeline()
	queueDeleteWrite(ctx, pipe, queue, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler/redis: delete job: %w", err)
	}
	return nil
}

// CountJobs returns the number of jobs in the given queue, armed or inert.
func (s *Store) CountJobs(ctx context.Context, queue string) (int64, error) {
	n, err := s.client.SCard(ctx, queueIDsKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("scheduler/redis: count jobs: %w", err)
	}
	return n, nil
}

// ClaimDue runs the claim script: one server-side atomic step that locks
// the earliest due job and returns its pre-lock snapshot.
func (s *Store) ClaimDue(ctx context.Context, queue string, now, lockUntil time.Time) (*job.Job, error) {
	res, err := claimScript.Run(ctx, s.client,
		[]string{queueKey(queue)},
		strconv.FormatInt(now.UnixMilli(), 10),
		lockUntil.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(lockUntil.UnixMilli(), 10),
		jobKeyPrefix,
	).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler/redis: claim due: %w", err)
	}

	flat, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("scheduler/redis: claim due: unexpected reply %T", res)
	}
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, kOk := flat[i].(string)
		v, vOk := flat[i+1].(string)
		if kOk && vOk {
			m[k] = v
		}
	}
	return jobFromMap(m)
}

// Transact runs fn with optimistic concurrency: reads execute immediately
// under WATCH, writes queue up and commit in one MULTI/EXEC at the end.
// A concurrent write to a watched key aborts the commit with ErrTxConflict.
func (s *Store) Transact(ctx context.Context, fn func(tx job.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *goredis.Tx) error {
		t := &redisTx{ctx: ctx, tx: rtx}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.writes) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, w := range t.writes {
				w(pipe)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, goredis.TxFailedErr) {
		return scheduler.ErrTxConflict
	}
	return err
}

var _ job.Tx = (*redisTx)(nil)

// redisTx buffers writes for one optimistic transaction.
type redisTx struct {
	ctx    context.Context
	tx     *goredis.Tx
	writes []func(goredis.Pipeliner)
}

// FindDue returns the earliest due job in the queue and watches its keys so
// the later commit fails if anyone else touches them.
func (t *redisTx) FindDue(ctx context.Context, queue string, now time.Time) (*job.Job, error) {
	qk := queueKey(queue)
	if err := t.tx.Watch(ctx, qk).Err(); err != nil {
		return nil, fmt.Errorf("scheduler/redis: watch queue: %w", err)
	}

	ids, err := t.tx.ZRangeByScore(ctx, qk, &goredis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10),
		Offset: 0, Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: find due: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	key := jobKey(ids[0])
	if err := t.tx.Watch(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("scheduler/redis: watch job: %w", err)
	}
	m, err := t.tx.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: find due read: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return jobFromMap(m)
}

func (t *redisTx) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	jID := jobID.String()
	queue, err := t.tx.HGet(ctx, jobKey(jID), "queue").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return scheduler.ErrJobNotFound
		}
		return fmt.Errorf("scheduler/redis: tx set sleep until: %w", err)
	}
	t.writes = append(t.writes, func(pipe goredis.Pipeliner) {
		queueSleepWrite(t.ctx, pipe, queue, jID, until)
	})
	return nil
}

func (t *redisTx) Delete(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	queue, err := t.tx.HGet(ctx, jobKey(jID), "queue").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return scheduler.ErrJobNotFound
		}
		return fmt.Errorf("scheduler/redis: tx delete: %w", err)
	}
	t.writes = append(t.writes, func(pipe goredis.Pipeliner) {
		queueDeleteWrite(t.ctx, pipe, queue, jID)
	})
	return nil
}

// queueSleepWrite updates a job's wake-up field and its queue index in one
// pipeline.
func queueSleepWrite(ctx context.Context, pipe goredis.Pipeliner, queue, jID string, until *time.Time) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe.HSet(ctx, jobKey(jID), "sleep_until", formatTime(until), "updated_at", now)
	if until == nil {
		pipe.ZRem(ctx, queueKey(queue), jID)
	} else {
		pipe.ZAdd(ctx, queueKey(queue), goredis.Z{Score: score(*until), Member: jID})
	}
}

// queueDeleteWrite removes a job's Hash and index entries in one pipeline.
func queueDeleteWrite(ctx context.Context, pipe goredis.Pipeliner, queue, jID string) {
	pipe.Del(ctx, jobKey(jID))
	pipe.SRem(ctx, queueIDsKey(queue), jID)
	pipe.ZRem(ctx, queueKey(queue), jID)
}
