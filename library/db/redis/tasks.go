package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	redisLib "github.com/redis/go-redis/v9"
)

// Enqueue pushes a new task envelope onto the queue identified by key.
func (db *DB) Enqueue(ctx context.Context, key, jobName string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal task payload")
	}

	envelope, err := json.Marshal(TaskEnvelope{
		JobName:    jobName,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal task envelope")
	}

	if err = db.db.RPush(ctx, key, envelope).Err(); err != nil {
		return errors.Wrap(err, "rpush task")
	}

	return nil
}

// Dequeue pops the oldest task envelope from the queue, blocking up to
// timeout. Returns nil without error when the queue stays empty.
func (db *DB) Dequeue(ctx context.Context, key string, timeout time.Duration) (*TaskEnvelope, error) {
	values, err := db.db.BLPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redisLib.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "blpop task")
	}
	if len(values) != 2 {
		return nil, errors.Errorf("unexpected blpop reply length %d", len(values))
	}

	envelope := new(TaskEnvelope)
	if err = json.Unmarshal([]byte(values[1]), envelope); err != nil {
		// push the raw value aside so a malformed producer cannot wedge the queue
		if dlErr := db.DeadLetter(ctx, key+"_dead", []byte(values[1])); dlErr != nil {
			return nil, errors.Wrap(dlErr, "dead letter malformed envelope")
		}
		return nil, errors.Wrap(err, "unmarshal task envelope")
	}

	return envelope, nil
}

// Requeue pushes an already-delivered envelope back onto the queue, keeping
// its metadata (the caller bumps Attempts before retrying).
func (db *DB) Requeue(ctx context.Context, key string, envelope *TaskEnvelope) error {
	if envelope == nil {
		return errors.New("envelope is nil")
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "marshal task envelope")
	}
	if err = db.db.RPush(ctx, key, raw).Err(); err != nil {
		return errors.Wrap(err, "rpush requeued task")
	}
	return nil
}

// DeadLetter stores a rejected payload on the side list for inspection.
func (db *DB) DeadLetter(ctx context.Context, key string, raw []byte) error {
	if err := db.db.RPush(ctx, key, raw).Err(); err != nil {
		return errors.Wrap(err, "rpush dead letter")
	}
	return nil
}
