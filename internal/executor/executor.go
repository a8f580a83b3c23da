package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/dispatch"
	"github.com/minhct/harvesterd/internal/infra/storage"
	"github.com/minhct/harvesterd/internal/metrics"
	"github.com/minhct/harvesterd/internal/processing"
	"github.com/minhct/harvesterd/internal/retry"
)

// rateLimitBailoutAfter stops re-arming rate limited jobs once this many
// retries have burned. An upstream still throttling after two waits is not
// going to relent within the ladder.
const rateLimitBailoutAfter = 2

// Executor runs one job through its full lifecycle: claim, validate,
// process, then record success or drive the failure path. It only ever
// claims pending jobs; the worker pool resets retrying jobs back to pending
// before handing them over.
type Executor struct {
	jobs       storage.JobRepository
	profiles   storage.ProfileRepository
	snapshots  storage.SnapshotRepository
	registry   *processing.Registry
	engine     *retry.Engine
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	// onJobUpdate, when set, observes every persisted status transition.
	onJobUpdate func(*domain.Job)
}

func NewExecutor(
	jobs storage.JobRepository,
	profiles storage.ProfileRepository,
	snapshots storage.SnapshotRepository,
	registry *processing.Registry,
	engine *retry.Engine,
	dispatcher *dispatch.Dispatcher,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		jobs:       jobs,
		profiles:   profiles,
		snapshots:  snapshots,
		registry:   registry,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger.With("component", "executor"),
		now:        time.Now,
	}
}

// SetOnJobUpdate installs a transition observer. Not safe to call once the
// executor is in use.
func (e *Executor) SetOnJobUpdate(fn func(*domain.Job)) {
	e.onJobUpdate = fn
}

// ProcessJob executes the job with the given id. A missing job or a job in
// a non-claimable state is logged and skipped, never an error: queue entries
// can outlive their jobs, and another worker may have claimed first.
func (e *Executor) ProcessJob(ctx context.Context, jobID string) error {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("job vanished before execution", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if job.Status != domain.JobStatusPending {
		e.logger.Info("skipping job in non-claimable state",
			"job_id", job.ID, "status", job.Status)
		return nil
	}

	startedAt := e.now()
	claimed, err := e.jobs.ClaimPending(ctx, job.ID, startedAt)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		e.logger.Info("job claimed elsewhere", "job_id", job.ID)
		return nil
	}
	job.Status = domain.JobStatusRunning
	job.StartedAt = &startedAt

	result, perr := e.run(ctx, job)
	if perr != nil {
		return e.handleFailure(ctx, job, perr)
	}
	return e.handleSuccess(ctx, job, result, startedAt)
}

func (e *Executor) run(ctx context.Context, job *domain.Job) (*processing.Result, *domain.ProcessingError) {
	proc, err := e.registry.ForContentType(job.ContentType)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	profile, err := e.profiles.GetByUser(ctx, job.UserID)
	if err != nil {
		return nil, domain.Classify(fmt.Errorf("load profile for user %s: %w", job.UserID, err))
	}

	if err := proc.Validate(ctx, job, profile); err != nil {
		return nil, domain.Classify(err)
	}

	result, err := proc.Process(ctx, job, profile)
	if err != nil {
		return nil, domain.Classify(err)
	}
	return result, nil
}

func (e *Executor) handleSuccess(ctx context.Context, job *domain.Job, result *processing.Result, startedAt time.Time) error {
	completedAt := e.now()
	if err := e.jobs.MarkCompleted(ctx, job.ID, completedAt, result.ItemsProcessed); err != nil {
		return fmt.Errorf("mark job %s completed: %w", job.ID, err)
	}
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.ItemsProcessed = result.ItemsProcessed
	e.notify(job)

	if err := e.snapshots.ApplyJobResult(ctx, job); err != nil {
		return fmt.Errorf("apply snapshot for job %s: %w", job.ID, err)
	}

	allDone, err := e.jobs.AllCompletedForDate(ctx, job.UserID, job.ProfileID, job.ProcessingDate)
	if err != nil {
		return fmt.Errorf("check completion for user %s: %w", job.UserID, err)
	}
	if allDone {
		if err := e.snapshots.MarkAllCompleted(ctx, job.UserID, job.ProfileID, job.ProcessingDate, completedAt); err != nil {
			return fmt.Errorf("mark snapshot completed for user %s: %w", job.UserID, err)
		}
	}

	ct := string(job.ContentType)
	metrics.JobsProcessed.WithLabelValues(ct, "completed").Inc()
	metrics.ItemsProcessed.WithLabelValues(ct).Add(float64(result.ItemsProcessed))
	metrics.JobDuration.WithLabelValues(ct).Observe(completedAt.Sub(startedAt).Seconds())

	e.logger.Info("job completed",
		"job_id", job.ID,
		"content_type", job.ContentType,
		"items", result.ItemsProcessed,
		"all_done", allDone)
	return nil
}

func (e *Executor) handleFailure(ctx context.Context, job *domain.Job, perr *domain.ProcessingError) error {
	trace := errorTrace(perr)
	if err := e.jobs.MarkFailed(ctx, job.ID, perr.Error(), trace); err != nil {
		return fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = perr.Error()
	job.ErrorTrace = trace
	e.notify(job)

	ct := string(job.ContentType)

	if !perr.Retryable() {
		metrics.JobsProcessed.WithLabelValues(ct, "failed_permanent").Inc()
		e.logger.Error("job failed permanently",
			"job_id", job.ID, "kind", perr.Kind, "error", perr.Message)
		return nil
	}

	if perr.Kind == domain.ErrorKindRateLimit && job.RetryCount >= rateLimitBailoutAfter {
		metrics.JobsProcessed.WithLabelValues(ct, "rate_limit_bailout").Inc()
		e.logger.Error("abandoning rate limited job",
			"job_id", job.ID, "retry_count", job.RetryCount)
		return nil
	}

	scheduled, err := e.engine.ScheduleRetry(ctx, job)
	if err != nil {
		return fmt.Errorf("schedule retry for job %s: %w", job.ID, err)
	}
	if !scheduled {
		metrics.JobsProcessed.WithLabelValues(ct, "failed_exhausted").Inc()
		e.logger.Error("job exhausted its retries",
			"job_id", job.ID, "retry_count", job.RetryCount, "error", perr.Message)
		return nil
	}
	e.notify(job)

	if err := e.dispatcher.EnqueueAt(ctx, job.ID, *job.NextRetryAt); err != nil {
		return fmt.Errorf("enqueue retry for job %s: %w", job.ID, err)
	}

	metrics.JobsProcessed.WithLabelValues(ct, "failed").Inc()
	metrics.JobRetriesScheduled.WithLabelValues(ct).Inc()
	e.logger.Warn("job failed, retry scheduled",
		"job_id", job.ID,
		"kind", perr.Kind,
		"retry_count", job.RetryCount,
		"next_retry_at", job.NextRetryAt.Format(time.RFC3339))
	return nil
}

func (e *Executor) notify(job *domain.Job) {
	if e.onJobUpdate != nil {
		e.onJobUpdate(job)
	}
}

// errorTrace renders the full wrapped cause chain, outermost first.
func errorTrace(err error) string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return strings.Join(chain, "\n")
}
