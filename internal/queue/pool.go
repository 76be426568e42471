package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/sportsclips/internal/logger"
)

// Handler processes one job. A returned error is logged; the job is acked either way since
// run state lives in the store.
type Handler func(ctx context.Context, job Job) error

type registration struct {
	handler     Handler
	concurrency int
}

// Pool runs a fixed number of workers per job kind.
type Pool struct {
	queue    Queue
	handlers map[Kind]registration
	wg       sync.WaitGroup
}

// NewPool creates a Pool reading from q.
func NewPool(q Queue) *Pool {
	return &Pool{queue: q, handlers: make(map[Kind]registration)}
}

// Register binds a handler and its worker count to a kind. Call before Start.
func (p *Pool) Register(kind Kind, concurrency int, h Handler) {
	if concurrency < 1 {
		concurrency = 1
	}
	p.handlers[kind] = registration{handler: h, concurrency: concurrency}
}

// Start launches the workers. They exit when ctx is done or the queue is closed.
func (p *Pool) Start(ctx context.Context) {
	for kind, reg := range p.handlers {
		for i := 0; i < reg.concurrency; i++ {
			p.wg.Add(1)
			go func(kind Kind, workerID int, h Handler) {
				defer p.wg.Done()
				p.worker(ctx, kind, workerID, h)
			}(kind, i, reg.handler)
		}
		logger.CtxInfo(ctx, "[Queue] Started %d %s workers", reg.concurrency, kind)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, kind Kind, workerID int, h Handler) {
	for {
		job, err := p.queue.Dequeue(ctx, kind)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			logger.FromContext(ctx).WithError(err).WithField("worker", workerID).Warn("Dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		p.run(ctx, job, h)

		if err := p.queue.Ack(ctx, job); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldJobID, job.ID).Warn("Ack failed")
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job, h Handler) {
	jobCtx := logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:     job.ID,
		logger.FieldComponent: string(job.Kind),
	})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.With(logger.Fields{logger.FieldStatus: "panic"}).WithDuration(start).
				Error(jobCtx, "Job panicked: %v", r)
		}
	}()

	if err := h(jobCtx, job); err != nil {
		logger.With(logger.Fields{"error": fmt.Sprint(err)}).WithDuration(start).WithStatus("failed").
			Error(jobCtx, "Job failed")
		return
	}
	logger.With(nil).WithDuration(start).WithStatus("done").Debug(jobCtx, "Job finished")
}
