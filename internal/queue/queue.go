// Package queue bounds how many scans run at once across the process.
package queue

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/raysh454/webscan/internal/logging"
)

// ErrClosed is returned for tasks submitted to, or still waiting in, a
// closed queue.
var ErrClosed = errors.New("scan queue closed")

// Queue admits at most Concurrency tasks at a time. Waiting tasks are
// admitted in submission order.
type Queue struct {
	sem         *semaphore.Weighted
	concurrency int
	logger      logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	active    atomic.Int64
	waiting   atomic.Int64
	completed atomic.Uint64
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Concurrency int    `json:"concurrency"`
	Active      int64  `json:"active"`
	Waiting     int64  `json:"waiting"`
	Completed   uint64 `json:"completed"`
}

func New(concurrency int, logger logging.Logger) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		sem:         semaphore.NewWeighted(int64(concurrency)),
		concurrency: concurrency,
		logger:      logger.With(logging.Field{Key: "component", Value: "queue"}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run waits for a slot, runs task and returns its result. Giving up while
// waiting (ctx done or queue closed) never runs task.
func Run[T any](ctx context.Context, q *Queue, task func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if q.ctx.Err() != nil {
		return zero, ErrClosed
	}

	acqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(q.ctx, cancel)
	defer stop()

	q.waiting.Add(1)
	err := q.sem.Acquire(acqCtx, 1)
	q.waiting.Add(-1)
	if err != nil {
		if q.ctx.Err() != nil {
			return zero, ErrClosed
		}
		return zero, err
	}
	defer q.sem.Release(1)

	n := q.active.Add(1)
	q.logger.Debug("task admitted", logging.Field{Key: "active", Value: n}, logging.Field{Key: "waiting", Value: q.waiting.Load()})
	defer func() {
		q.active.Add(-1)
		q.completed.Add(1)
	}()

	return task(ctx)
}

func (q *Queue) Stats() Stats {
	return Stats{
		Concurrency: q.concurrency,
		Active:      q.active.Load(),
		Waiting:     q.waiting.Load(),
		Completed:   q.completed.Load(),
	}
}

// Close rejects new and waiting tasks. Running tasks are not interrupted.
func (q *Queue) Close() {
	q.cancel()
}
