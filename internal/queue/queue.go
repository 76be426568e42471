// Package queue carries fetch and query-run jobs from the scheduler to workers.
package queue

import (
	"context"
	"errors"
	"time"
)

// Kind selects the worker class that handles a job.
type Kind string

const (
	KindSourceFetch Kind = "source_fetch"
	KindQueryRun    Kind = "query_run"
)

// Kinds lists every job kind.
var Kinds = []Kind{KindSourceFetch, KindQueryRun}

// ErrClosed is returned by a closed queue.
var ErrClosed = errors.New("queue closed")

// Job is one unit of work. ID is the run id and doubles as the dedup key.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	EntityID   string    `json:"entity_id"`
	OrgID      string    `json:"org_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a FIFO job queue partitioned by kind. Enqueue is idempotent on Job.ID.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job of kind is available or ctx is done.
	Dequeue(ctx context.Context, kind Kind) (Job, error)
	Ack(ctx context.Context, job Job) error
	Len(ctx context.Context, kind Kind) (int64, error)
	Close() error
}
