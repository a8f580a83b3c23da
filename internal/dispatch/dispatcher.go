package dispatch

import (
	"context"
	"time"
)

// Queue is a time-ordered job id queue. Jobs become visible once their
// run-at time has passed.
type Queue interface {
	// Enqueue adds a job id to run at the given time. Re-enqueueing an id
	// updates its run-at time.
	Enqueue(ctx context.Context, jobID string, at time.Time) error

	// PopDue removes and returns the earliest job whose run-at time is at or
	// before now. The second return is false when nothing is due.
	PopDue(ctx context.Context, now time.Time) (string, bool, error)

	// Depth returns the number of queued jobs, due or not.
	Depth(ctx context.Context) (int64, error)
}

// Dispatcher hands job ids to the queue. It is the single write path into
// the queue so every scheduling decision goes through one place.
type Dispatcher struct {
	queue Queue
	now   func() time.Time
}

func NewDispatcher(queue Queue) *Dispatcher {
	return &Dispatcher{queue: queue, now: time.Now}
}

// EnqueueNow schedules a job for immediate execution.
func (d *Dispatcher) EnqueueNow(ctx context.Context, jobID string) error {
	return d.queue.Enqueue(ctx, jobID, d.now())
}

// EnqueueAt schedules a job for a future time.
func (d *Dispatcher) EnqueueAt(ctx context.Context, jobID string, at time.Time) error {
	return d.queue.Enqueue(ctx, jobID, at)
}

// Queue exposes the underlying queue for the worker pool's pop loop.
func (d *Dispatcher) Queue() Queue {
	return d.queue
}
