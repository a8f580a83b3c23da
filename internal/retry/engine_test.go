package retry

import (
	"context"
	"testing"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/storage/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.JobRepo) {
	t.Helper()
	store := memory.NewMemoryStorage()
	jobs := memory.NewJobRepo(store)
	return NewEngine(jobs, nil), jobs
}

func failedJob(t *testing.T, jobs *memory.JobRepo, retryCount int) *domain.Job {
	t.Helper()
	ctx := context.Background()
	job := &domain.Job{
		ID:             "job-1",
		UserID:         "user-1",
		ProfileID:      "profile-1",
		ContentType:    domain.ContentTypeBookmarks,
		ProcessingDate: domain.Today(),
		Status:         domain.JobStatusPending,
		RetryCount:     retryCount,
		MaxRetries:     domain.DefaultMaxRetries,
		ScheduledAt:    time.Now(),
	}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := jobs.ClaimPending(ctx, job.ID, time.Now()); err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if err := jobs.MarkFailed(ctx, job.ID, "boom", ""); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	job.Status = domain.JobStatusFailed
	return job
}

func TestDelayFor_LadderIsDeterministic(t *testing.T) {
	e, _ := newTestEngine(t)

	want := []time.Duration{
		300 * time.Second,
		900 * time.Second,
		1800 * time.Second,
		3600 * time.Second,
		7200 * time.Second,
	}
	for i, w := range want {
		got, ok := e.DelayFor(i)
		if !ok {
			t.Fatalf("DelayFor(%d) reported exhausted", i)
		}
		if got != w {
			t.Errorf("DelayFor(%d) = %v, want %v", i, got, w)
		}
	}

	if _, ok := e.DelayFor(5); ok {
		t.Error("DelayFor(5) should be exhausted")
	}
}

func TestShouldRetry_Gates(t *testing.T) {
	e, jobs := newTestEngine(t)
	job := failedJob(t, jobs, 0)

	if !e.ShouldRetry(job) {
		t.Error("fresh failed job should be retryable")
	}

	job.Status = domain.JobStatusRunning
	if e.ShouldRetry(job) {
		t.Error("non-failed job must not be retryable")
	}
	job.Status = domain.JobStatusFailed

	job.RetryCount = job.MaxRetries
	if e.ShouldRetry(job) {
		t.Error("exhausted job must not be retryable")
	}
	job.RetryCount = 1

	future := time.Now().Add(time.Hour)
	job.NextRetryAt = &future
	if e.ShouldRetry(job) {
		t.Error("job must not retry before its backoff elapses")
	}

	past := time.Now().Add(-time.Minute)
	job.NextRetryAt = &past
	if !e.ShouldRetry(job) {
		t.Error("job with elapsed backoff should be retryable")
	}
}

func TestScheduleRetry_ArmsNextAttempt(t *testing.T) {
	e, jobs := newTestEngine(t)
	job := failedJob(t, jobs, 0)

	before := time.Now()
	ok, err := e.ScheduleRetry(context.Background(), job)
	if err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}
	if !ok {
		t.Fatal("ScheduleRetry returned false for a fresh failure")
	}

	if job.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", job.RetryCount)
	}
	if job.Status != domain.JobStatusRetrying {
		t.Errorf("status = %s, want retrying", job.Status)
	}
	if job.NextRetryAt == nil {
		t.Fatal("next_retry_at not set")
	}
	// First retry uses ladder[0] = 300s.
	earliest := before.Add(300 * time.Second)
	latest := time.Now().Add(300 * time.Second)
	if job.NextRetryAt.Before(earliest) || job.NextRetryAt.After(latest) {
		t.Errorf("next_retry_at = %v, want ~now+300s", job.NextRetryAt)
	}

	// Persisted too.
	stored, err := jobs.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != domain.JobStatusRetrying || stored.RetryCount != 1 || stored.NextRetryAt == nil {
		t.Errorf("persisted job = %s/%d, want retrying/1 with next_retry_at", stored.Status, stored.RetryCount)
	}
}

func TestScheduleRetry_ExhaustionBoundary(t *testing.T) {
	e, jobs := newTestEngine(t)
	job := failedJob(t, jobs, domain.DefaultMaxRetries)

	ok, err := e.ScheduleRetry(context.Background(), job)
	if err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}
	if ok {
		t.Error("ScheduleRetry must refuse when retry_count == max_retries")
	}
	if job.NextRetryAt != nil {
		t.Error("exhausted job must never receive a next_retry_at")
	}
	if job.Status != domain.JobStatusFailed {
		t.Errorf("status = %s, want failed (terminal)", job.Status)
	}
}

func TestScheduleRetry_WalksTheLadder(t *testing.T) {
	e, jobs := newTestEngine(t)
	ctx := context.Background()

	job := failedJob(t, jobs, 0)

	wantDelays := []time.Duration{300, 900, 1800, 3600, 7200}
	for i, sec := range wantDelays {
		before := time.Now()
		ok, err := e.ScheduleRetry(ctx, job)
		if err != nil {
			t.Fatalf("ScheduleRetry #%d failed: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("ScheduleRetry #%d returned false", i+1)
		}
		gap := job.NextRetryAt.Sub(before)
		want := sec * time.Second
		if gap < want-time.Second || gap > want+time.Second {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, gap, want)
		}

		// Simulate the dispatch loop bringing it back to failed.
		if _, err := jobs.ResetRetrying(ctx, job.ID); err != nil {
			t.Fatalf("ResetRetrying failed: %v", err)
		}
		if _, err := jobs.ClaimPending(ctx, job.ID, time.Now()); err != nil {
			t.Fatalf("ClaimPending failed: %v", err)
		}
		if err := jobs.MarkFailed(ctx, job.ID, "boom again", ""); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}
		job.Status = domain.JobStatusFailed
	}

	// Sixth attempt: ladder and budget both exhausted.
	ok, err := e.ScheduleRetry(ctx, job)
	if err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}
	if ok {
		t.Error("sixth retry must be refused")
	}
}
