package storage

import (
	"context"
	"errors"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateJob is returned when a job already exists for the
	// (user, profile, content_type, processing_date) key.
	ErrDuplicateJob = errors.New("job already exists for this date and content type")
)

// JobRepository handles processing job storage. All status transitions are
// guarded: a Mark/Claim call that finds the job in the wrong state reports
// it rather than overwriting.
type JobRepository interface {
	// Create inserts a new pending job. Fails with ErrDuplicateJob when the
	// idempotency key is already taken.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by id.
	GetByID(ctx context.Context, id string) (*domain.Job, error)

	// FindByKey retrieves the job for a (user, content_type, date) key, or
	// nil when none exists.
	FindByKey(ctx context.Context, userID string, ct domain.ContentType, date time.Time) (*domain.Job, error)

	// ClaimPending transitions pending -> running, setting started_at.
	// Returns false without side effects if the job is not pending.
	ClaimPending(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// ResetRetrying transitions retrying -> pending and clears
	// next_retry_at. Returns false if the job is not retrying.
	ResetRetrying(ctx context.Context, id string) (bool, error)

	// MarkCompleted transitions running -> completed.
	MarkCompleted(ctx context.Context, id string, completedAt time.Time, itemsProcessed int) error

	// MarkFailed transitions running -> failed, recording the error.
	MarkFailed(ctx context.Context, id string, errMsg, errTrace string) error

	// MarkRetrying transitions failed -> retrying with the new retry count
	// and next attempt time.
	MarkRetrying(ctx context.Context, id string, retryCount int, nextRetryAt time.Time) error

	// ResetForReschedule returns a terminally failed job to pending with
	// counters and error fields cleared, so a later scheduler run can reuse
	// it instead of violating the unique key.
	ResetForReschedule(ctx context.Context, id string, scheduledAt time.Time) error

	// ListFailed retrieves all terminally failed jobs, optionally limited
	// to one user when userID is non-empty.
	ListFailed(ctx context.Context, userID string) ([]*domain.Job, error)

	// AllCompletedForDate reports whether every job for the key has
	// completed (and at least one exists).
	AllCompletedForDate(ctx context.Context, userID, profileID string, date time.Time) (bool, error)

	// CountByStatus returns job counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error)

	// DeleteCompletedBefore prunes completed jobs older than the cutoff.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScheduleRepository handles per-user processing schedules.
type ScheduleRepository interface {
	// Get retrieves a user's schedule, or nil when none exists.
	Get(ctx context.Context, userID string) (*domain.Schedule, error)

	// Save upserts a schedule.
	Save(ctx context.Context, schedule *domain.Schedule) error

	// ListEnabled retrieves all enabled schedules.
	ListEnabled(ctx context.Context) ([]*domain.Schedule, error)
}

// ProfileRepository is the read-only view of linked external profiles.
type ProfileRepository interface {
	// GetByUser retrieves the profile linked to a user, or nil when the
	// user has none.
	GetByUser(ctx context.Context, userID string) (*domain.Profile, error)
}

// SnapshotRepository handles the per-user-per-day aggregate counters.
type SnapshotRepository interface {
	// ApplyJobResult upserts the snapshot for the job's key and sets the
	// counter owned by the job's content type to items_processed,
	// recomputing the total. The merge is atomic: concurrent jobs for other
	// content types touch disjoint counters.
	ApplyJobResult(ctx context.Context, job *domain.Job) error

	// MarkAllCompleted flags the snapshot once every job for the key has
	// completed.
	MarkAllCompleted(ctx context.Context, userID, profileID string, date, completedAt time.Time) error

	// Get retrieves a snapshot, or nil when none exists.
	Get(ctx context.Context, userID, profileID string, date time.Time) (*domain.Snapshot, error)
}

// ItemStore persists raw fetched items. Storing the same item twice is a
// no-op; the count of newly stored items is returned.
type ItemStore interface {
	StoreItems(ctx context.Context, items []*domain.ContentItem) (int, error)
}
