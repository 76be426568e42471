package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultJobTTL      = 24 * time.Hour
	defaultPollTimeout = time.Second
	keyPrefix          = "sportsclips:queue:"
)

// RedisQueue stores jobs in Redis lists. A job moves from the pending list to a processing
// list on Dequeue and is removed on Ack. A SET NX marker per job id drops duplicate enqueues.
type RedisQueue struct {
	client      *redis.Client
	jobTTL      time.Duration
	pollTimeout time.Duration
}

// RedisOptions tunes a RedisQueue.
type RedisOptions struct {
	JobTTL      time.Duration // lifetime of the dedup marker
	PollTimeout time.Duration // blocking pop timeout between ctx checks
}

// NewRedisQueue wraps an existing client.
func NewRedisQueue(client *redis.Client, opts RedisOptions) *RedisQueue {
	if opts.JobTTL <= 0 {
		opts.JobTTL = defaultJobTTL
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	return &RedisQueue{client: client, jobTTL: opts.JobTTL, pollTimeout: opts.PollTimeout}
}

func pendingKey(kind Kind) string    { return keyPrefix + string(kind) + ":pending" }
func processingKey(kind Kind) string { return keyPrefix + string(kind) + ":processing" }
func markerKey(id string) string     { return keyPrefix + "job:" + id }

// Enqueue pushes job unless a job with the same id was enqueued within the TTL.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	fresh, err := q.client.SetNX(ctx, markerKey(job.ID), string(job.Kind), q.jobTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to mark job %s: %w", job.ID, err)
	}
	if !fresh {
		return nil
	}

	if err := q.client.LPush(ctx, pendingKey(job.Kind), payload).Err(); err != nil {
		// release the marker so a retry can enqueue
		q.client.Del(ctx, markerKey(job.ID))
		return fmt.Errorf("failed to push job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue moves the oldest pending job to the processing list.
func (q *RedisQueue) Dequeue(ctx context.Context, kind Kind) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		raw, err := q.client.BRPopLPush(ctx, pendingKey(kind), processingKey(kind), q.pollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return Job{}, ErrClosed
			}
			return Job{}, fmt.Errorf("failed to dequeue %s: %w", kind, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.client.LRem(ctx, processingKey(kind), 1, raw)
			return Job{}, fmt.Errorf("failed to decode job: %w", err)
		}
		return job, nil
	}
}

// Ack removes a finished job from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.client.LRem(ctx, processingKey(job.Kind), 1, payload).Err(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", job.ID, err)
	}
	return nil
}

// Len returns the number of pending jobs of kind.
func (q *RedisQueue) Len(ctx context.Context, kind Kind) (int64, error) {
	return q.client.LLen(ctx, pendingKey(kind)).Result()
}

// Close closes the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
