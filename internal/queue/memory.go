package queue

import (
	"context"
	"errors"
	"sync"
)

const memoryQueueBuffer = 1024

// MemoryQueue is an in-process Queue for single-binary deployments and tests.
type MemoryQueue struct {
	mu     sync.Mutex
	lanes  map[Kind]chan Job
	seen   map[string]struct{}
	closed bool
}

// NewMemoryQueue creates a MemoryQueue with one buffered lane per kind.
func NewMemoryQueue() *MemoryQueue {
	lanes := make(map[Kind]chan Job, len(Kinds))
	for _, k := range Kinds {
		lanes[k] = make(chan Job, memoryQueueBuffer)
	}
	return &MemoryQueue{lanes: lanes, seen: make(map[string]struct{})}
}

func (q *MemoryQueue) lane(kind Kind) (chan Job, error) {
	ch, ok := q.lanes[kind]
	if !ok {
		return nil, errors.New("unknown job kind: " + string(kind))
	}
	return ch, nil
}

// Enqueue adds job unless its id was already seen.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	ch, err := q.lane(job.Kind)
	if err != nil {
		return err
	}
	if _, dup := q.seen[job.ID]; dup {
		return nil
	}

	select {
	case ch <- job:
		q.seen[job.ID] = struct{}{}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("queue full for kind " + string(job.Kind))
	}
}

// Dequeue waits for the next job of kind.
func (q *MemoryQueue) Dequeue(ctx context.Context, kind Kind) (Job, error) {
	ch, err := q.lane(kind)
	if err != nil {
		return Job{}, err
	}
	select {
	case job, ok := <-ch:
		if !ok {
			return Job{}, ErrClosed
		}
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Ack is a no-op; delivered jobs are already off the lane.
func (q *MemoryQueue) Ack(ctx context.Context, job Job) error {
	return nil
}

// Len returns the number of buffered jobs of kind.
func (q *MemoryQueue) Len(ctx context.Context, kind Kind) (int64, error) {
	ch, err := q.lane(kind)
	if err != nil {
		return 0, err
	}
	return int64(len(ch)), nil
}

// Close stops accepting jobs and wakes blocked consumers.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for _, ch := range q.lanes {
		close(ch)
	}
	return nil
}
