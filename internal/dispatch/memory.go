package dispatch

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and single-node runs without
// Redis. Semantics mirror the Redis queue: scored by run-at time, one pop
// per due job.
type MemoryQueue struct {
	mu    sync.Mutex
	runAt map[string]time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{runAt: make(map[string]time.Time)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.runAt[jobID] = at
	return nil
}

func (q *MemoryQueue) PopDue(ctx context.Context, now time.Time) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		bestID string
		bestAt time.Time
		found  bool
	)
	for id, at := range q.runAt {
		if at.After(now) {
			continue
		}
		if !found || at.Before(bestAt) || (at.Equal(bestAt) && id < bestID) {
			bestID, bestAt, found = id, at, true
		}
	}
	if !found {
		return "", false, nil
	}
	delete(q.runAt, bestID)
	return bestID, true, nil
}

func (q *MemoryQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.runAt)), nil
}
