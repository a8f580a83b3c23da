package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/storage"
)

// DefaultDelays is the fixed backoff ladder, indexed by the retry count
// before increment: 5min, 15min, 30min, 1h, 2h. Deterministic, no jitter.
var DefaultDelays = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
}

// Engine owns re-arming failed jobs. It is the only component that moves a
// job from failed to retrying; the executor never retries inline.
type Engine struct {
	jobs   storage.JobRepository
	delays []time.Duration
	now    func() time.Time
}

// NewEngine creates a retry engine over the given ladder. Pass nil delays
// for the default ladder.
func NewEngine(jobs storage.JobRepository, delays []time.Duration) *Engine {
	if delays == nil {
		delays = DefaultDelays
	}
	return &Engine{
		jobs:   jobs,
		delays: delays,
		now:    time.Now,
	}
}

// Delays returns the ladder, shared with the processor contract.
func (e *Engine) Delays() []time.Duration {
	return e.delays
}

// DelayFor returns the delay for a given retry count, or false when the
// ladder is exhausted.
func (e *Engine) DelayFor(retryCount int) (time.Duration, bool) {
	if retryCount < 0 || retryCount >= len(e.delays) {
		return 0, false
	}
	return e.delays[retryCount], true
}

// ShouldRetry reports whether a job is eligible for another attempt: it
// must be failed, have retries left, and its backoff window (if armed)
// must have elapsed.
func (e *Engine) ShouldRetry(job *domain.Job) bool {
	if job.Status != domain.JobStatusFailed {
		return false
	}
	if job.RetriesExhausted() {
		return false
	}
	if job.NextRetryAt != nil {
		return !e.now().Before(*job.NextRetryAt)
	}
	return true
}

// ScheduleRetry arms the next attempt: increments retry_count, moves the
// job to retrying and persists next_retry_at = now + ladder[count before
// increment]. Returns false without mutation when retries are exhausted.
func (e *Engine) ScheduleRetry(ctx context.Context, job *domain.Job) (bool, error) {
	if job.RetriesExhausted() {
		return false, nil
	}

	delay, ok := e.DelayFor(job.RetryCount)
	if !ok {
		return false, nil
	}

	nextRetryAt := e.now().Add(delay)
	newCount := job.RetryCount + 1

	if err := e.jobs.MarkRetrying(ctx, job.ID, newCount, nextRetryAt); err != nil {
		return false, fmt.Errorf("failed to schedule retry for job %s: %w", job.ID, err)
	}

	job.RetryCount = newCount
	job.Status = domain.JobStatusRetrying
	job.NextRetryAt = &nextRetryAt
	return true, nil
}
