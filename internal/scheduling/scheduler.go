package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/dispatch"
	"github.com/minhct/harvesterd/internal/infra/storage"
	"github.com/minhct/harvesterd/internal/metrics"
)

// Scheduler creates processing jobs and hands them to the dispatcher. It is
// the only component that creates jobs, so the one-job-per-key rule is
// enforced in a single place.
type Scheduler struct {
	jobs       storage.JobRepository
	schedules  storage.ScheduleRepository
	profiles   storage.ProfileRepository
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewScheduler(
	jobs storage.JobRepository,
	schedules storage.ScheduleRepository,
	profiles storage.ProfileRepository,
	dispatcher *dispatch.Dispatcher,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		jobs:       jobs,
		schedules:  schedules,
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger.With("component", "scheduler"),
		now:        time.Now,
	}
}

// ShouldScheduleJob reports whether a new attempt may be scheduled for the
// key: the user's schedule and the content type flag must be on, the user
// needs a linked profile, and any live or completed job blocks the key. A
// missing schedule counts as the default one (enabled, all types on).
func (s *Scheduler) ShouldScheduleJob(ctx context.Context, userID string, ct domain.ContentType, date time.Time) (bool, error) {
	schedule, err := s.schedules.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load schedule for user %s: %w", userID, err)
	}
	if schedule != nil && (!schedule.Enabled || !schedule.ContentTypeEnabled(ct)) {
		return false, nil
	}

	profile, err := s.profiles.GetByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load profile for user %s: %w", userID, err)
	}
	if profile == nil {
		return false, nil
	}

	existing, err := s.jobs.FindByKey(ctx, userID, ct, domain.DateOf(date))
	if err != nil {
		return false, fmt.Errorf("find job for user %s: %w", userID, err)
	}
	if existing == nil {
		return true, nil
	}
	return existing.Status == domain.JobStatusFailed, nil
}

// ScheduleUserJobs creates (or revives) the jobs for one user and date,
// returning the jobs it dispatched. With immediate set the jobs run right
// away, even for a future date; otherwise a future date is silently skipped
// and today's jobs run at the schedule's daily trigger time, pushed to the
// next day when the trigger has already passed.
func (s *Scheduler) ScheduleUserJobs(ctx context.Context, userID string, date time.Time, immediate bool) ([]*domain.Job, error) {
	date = domain.DateOf(date)
	if !immediate && date.After(domain.Today()) {
		s.logger.Info("skipping future date", "user_id", userID, "date", date.Format("2006-01-02"))
		return nil, nil
	}

	schedule, err := s.schedules.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load schedule for user %s: %w", userID, err)
	}
	if schedule == nil {
		schedule = domain.NewDefaultSchedule(userID)
		if err := s.schedules.Save(ctx, schedule); err != nil {
			return nil, fmt.Errorf("save default schedule for user %s: %w", userID, err)
		}
		s.logger.Info("created default schedule", "user_id", userID)
	}
	if !schedule.Enabled {
		s.logger.Info("schedule disabled, skipping user", "user_id", userID)
		return nil, nil
	}

	profile, err := s.profiles.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile for user %s: %w", userID, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("user %s has no linked profile", userID)
	}

	runAt := s.runAtFor(schedule, date, immediate)

	var scheduled []*domain.Job
	for _, ct := range domain.AllContentTypes() {
		job, err := s.scheduleOne(ctx, userID, profile.ID, ct, date, runAt)
		if err != nil {
			return scheduled, err
		}
		if job == nil {
			continue
		}
		if immediate {
			err = s.dispatcher.EnqueueNow(ctx, job.ID)
		} else {
			err = s.dispatcher.EnqueueAt(ctx, job.ID, runAt)
		}
		if err != nil {
			return scheduled, fmt.Errorf("enqueue job %s: %w", job.ID, err)
		}
		metrics.JobsScheduled.WithLabelValues(string(ct)).Inc()
		scheduled = append(scheduled, job)
	}

	s.logger.Info("scheduled user jobs",
		"user_id", userID,
		"date", date.Format("2006-01-02"),
		"count", len(scheduled),
		"run_at", runAt.Format(time.RFC3339))
	return scheduled, nil
}

// scheduleOne creates or revives the job for one key. Returns nil when the
// gating rules block the key.
func (s *Scheduler) scheduleOne(ctx context.Context, userID, profileID string, ct domain.ContentType, date, runAt time.Time) (*domain.Job, error) {
	ok, err := s.ShouldScheduleJob(ctx, userID, ct, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("key blocked, skipping",
			"user_id", userID, "content_type", ct)
		return nil, nil
	}

	existing, err := s.jobs.FindByKey(ctx, userID, ct, date)
	if err != nil {
		return nil, fmt.Errorf("find job for user %s: %w", userID, err)
	}

	if existing != nil {
		// A failed job is revived in place so the unique key survives.
		if err := s.jobs.ResetForReschedule(ctx, existing.ID, runAt); err != nil {
			return nil, fmt.Errorf("reset failed job %s: %w", existing.ID, err)
		}
		s.logger.Info("revived failed job",
			"job_id", existing.ID, "user_id", userID, "content_type", ct)
		existing.Status = domain.JobStatusPending
		existing.RetryCount = 0
		existing.ScheduledAt = runAt
		existing.StartedAt = nil
		existing.CompletedAt = nil
		existing.NextRetryAt = nil
		existing.ErrorMessage = ""
		existing.ErrorTrace = ""
		return existing, nil
	}

	job := &domain.Job{
		ID:             uuid.New().String(),
		UserID:         userID,
		ProfileID:      profileID,
		ContentType:    ct,
		ProcessingDate: date,
		Status:         domain.JobStatusPending,
		MaxRetries:     domain.DefaultMaxRetries,
		ScheduledAt:    runAt,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job for user %s: %w", userID, err)
	}
	return job, nil
}

// runAtFor resolves when the user's jobs should run. The daily trigger that
// has already passed today moves to tomorrow rather than firing instantly.
func (s *Scheduler) runAtFor(schedule *domain.Schedule, date time.Time, immediate bool) time.Time {
	now := s.now()
	if immediate {
		return now
	}
	runAt := schedule.RunAt.On(date)
	if runAt.Before(now) {
		runAt = runAt.Add(24 * time.Hour)
	}
	return runAt
}

// ScheduleDailyJobs fans out over every enabled schedule for the given
// date, returning all jobs it dispatched. One user's failure never blocks
// the rest of the fanout.
func (s *Scheduler) ScheduleDailyJobs(ctx context.Context, date time.Time) ([]*domain.Job, error) {
	schedules, err := s.schedules.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}

	var all []*domain.Job
	for _, schedule := range schedules {
		jobs, err := s.ScheduleUserJobs(ctx, schedule.UserID, date, false)
		if err != nil {
			s.logger.Error("failed to schedule user",
				"user_id", schedule.UserID, "error", err)
			continue
		}
		all = append(all, jobs...)
	}

	s.logger.Info("daily scheduling complete",
		"date", domain.DateOf(date).Format("2006-01-02"),
		"users", len(schedules),
		"jobs", len(all))
	return all, nil
}
