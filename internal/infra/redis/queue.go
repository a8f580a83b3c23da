package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const queueKey = "harvesterd:dispatch"

// Queue is the Redis-backed dispatch queue: a ZSET of job ids scored by
// their run-at unix time. Implements dispatch.Queue.
type Queue struct {
	client *Client
}

// NewQueue creates a dispatch queue over an existing client.
func NewQueue(client *Client) *Queue {
	return &Queue{client: client}
}

// Enqueue adds or rescores a job id at the given run-at time.
func (q *Queue) Enqueue(ctx context.Context, jobID string, at time.Time) error {
	member := redis.Z{Score: float64(at.Unix()), Member: jobID}
	if err := q.client.rdb.ZAdd(ctx, queueKey, member).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PopDue removes and returns the earliest due job id. A job popped here is
// gone from the queue even if the worker crashes; the executor's guarded
// claim and the scheduler's failed-job revival cover that loss.
func (q *Queue) PopDue(ctx context.Context, now time.Time) (string, bool, error) {
	results, err := q.client.rdb.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: 1,
	}).Result()
	if err != nil {
		return "", false, fmt.Errorf("zrangebyscore failed: %w", err)
	}
	if len(results) == 0 {
		return "", false, nil
	}

	jobID := results[0]
	removed, err := q.client.rdb.ZRem(ctx, queueKey, jobID).Result()
	if err != nil {
		return "", false, fmt.Errorf("zrem failed: %w", err)
	}
	if removed == 0 {
		// Another worker got there first.
		return "", false, nil
	}
	return jobID, true, nil
}

// Depth returns the number of queued jobs, due or not.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.rdb.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}
