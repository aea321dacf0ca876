package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	scheduler "github.com/bobo-le/typeorm-scheduler"
	"github.com/bobo-le/typeorm-scheduler/id"
	"github.com/bobo-le/typeorm-scheduler/job"
)

// CreateJob persists a new job document.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.col().InsertOne(ctx, toDoc(j, s.fields))
	if err != nil {
		if isDuplicateKey(err) {
			return scheduler.ErrJobAlreadyExists
		}
		return fmt.Errorf("scheduler/mongo: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var doc bson.M
	err := s.col().FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, scheduler.ErrJobNotFound
		}
		return nil, fmt.Errorf("scheduler/mongo: get job: %w", err)
	}
	return fromDoc(doc, s.fields)
}

// SetSleepUntil writes the wake-up field of one document; nil stores null.
func (s *Store) SetSleepUntil(ctx context.Context, jobID id.JobID, until *time.Time) error {
	res, err := s.col().UpdateOne(ctx,
		bson.M{"_id": jobID.String()},
		bson.M{"$set": bson.M{
			s.fields.SleepUntil: timeOrNil(until),
			"updated_at":        time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("scheduler/mongo: set sleep until: %w", err)
	}
	if res.MatchedCount == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": jobID.String()})
	if err != nil {
		return fmt.Errorf("scheduler/mongo: delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// CountJobs returns the number of documents in the given queue.
func (s *Store) CountJobs(ctx context.Context, queue string) (int64, error) {
	n, err := s.col().CountDocuments(ctx, bson.M{"queue": queue})
	if err != nil {
		return 0, fmt.Errorf("scheduler/mongo: count jobs: %w", err)
	}
	return n, nil
}

// ClaimDue atomically locks the earliest due document and returns its
// pre-lock snapshot via FindOneAndUpdate. Both due conditions live in one
// operator document on the wake-up field: non-null and not after now.
func (s *Store) ClaimDue(ctx context.Context, queue string, now, lockUntil time.Time) (*job.Job, error) {
	filter := bson.M{
		"queue": queue,
		s.fields.SleepUntil: bson.M{
			"$ne":  nil,
			"$lte": now,
		},
	}
	update := bson.M{
		"$set": bson.M{
			s.fields.SleepUntil: lockUntil.UTC(),
			"updated_at":        now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetSort(bson.D{{Key: s.fields.SleepUntil, Value: 1}})

	var doc bson.M
	err := s.col().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler/mongo: claim due: %w", err)
	}
	return fromDoc(doc, s.fields)
}

// Transact runs fn inside a multi-document transaction. Requires a replica
// set or sharded cluster; standalone servers reject transactions.
func (s *Store) Transact(ctx context.Context, fn func(tx job.Tx) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("scheduler/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(&mongoTx{store: s, sc: sc})
	})
	return err
}

var _ job.Tx = (*mongoTx)(nil)

// mongoTx binds operations to a session context so they join the enclosing
// transaction regardless of the context the caller passes in.
type mongoTx struct {
	store *Store
	sc    context.Context
}

// FindDue returns the earliest due document in the queue, or nil when none
// is due.
func (t *mongoTx) FindDue(_ context.Context, queue string, now time.Time) (*job.Job, error) {
	f := t.store.fields
	filter := bson.M{
		"queue": queue,
		f.SleepUntil: bson.M{
			"$ne":  nil,
			"$lte": now,
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: f.SleepUntil, Value: 1}})

	var doc bson.M
	err := t.store.col().FindOne(t.sc, filter, opts).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler/mongo: find due: %w", err)
	}
	return fromDoc(doc, f)
}

func (t *mongoTx) SetSleepUntil(_ context.Context, jobID id.JobID, until *time.Time) error {
	return t.store.SetSleepUntil(t.sc, jobID, until)
}

func (t *mongoTx) Delete(_ context.Context, jobID id.JobID) error {
	return t.store.DeleteJob(t.sc, jobID)
}
