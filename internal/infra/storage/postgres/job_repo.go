package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/storage"
)

// JobRepo implements storage.JobRepository using PostgreSQL.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new PostgreSQL job repository.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

type jobRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	ProfileID      string         `db:"profile_id"`
	ContentType    string         `db:"content_type"`
	ProcessingDate time.Time      `db:"processing_date"`
	Status         string         `db:"status"`
	RetryCount     int            `db:"retry_count"`
	MaxRetries     int            `db:"max_retries"`
	ScheduledAt    time.Time      `db:"scheduled_at"`
	StartedAt      *time.Time     `db:"started_at"`
	CompletedAt    *time.Time     `db:"completed_at"`
	NextRetryAt    *time.Time     `db:"next_retry_at"`
	ItemsProcessed int            `db:"items_processed"`
	ErrorMessage   sql.NullString `db:"error_message"`
	ErrorTrace     sql.NullString `db:"error_trace"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r jobRow) toDomain() *domain.Job {
	return &domain.Job{
		ID:             r.ID,
		UserID:         r.UserID,
		ProfileID:      r.ProfileID,
		ContentType:    domain.ContentType(r.ContentType),
		ProcessingDate: domain.DateOf(r.ProcessingDate),
		Status:         domain.JobStatus(r.Status),
		RetryCount:     r.RetryCount,
		MaxRetries:     r.MaxRetries,
		ScheduledAt:    r.ScheduledAt,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		NextRetryAt:    r.NextRetryAt,
		ItemsProcessed: r.ItemsProcessed,
		ErrorMessage:   r.ErrorMessage.String,
		ErrorTrace:     r.ErrorTrace.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const jobColumns = `id, user_id, profile_id, content_type, processing_date, status,
	retry_count, max_retries, scheduled_at, started_at, completed_at, next_retry_at,
	items_processed, error_message, error_trace, created_at, updated_at`

// Create inserts a new pending job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO content_processing_jobs
			(id, user_id, profile_id, content_type, processing_date, status,
			 retry_count, max_retries, scheduled_at, items_processed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.ProfileID, string(job.ContentType),
		job.ProcessingDate, string(job.Status), job.RetryCount, job.MaxRetries,
		job.ScheduledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrDuplicateJob
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM content_processing_jobs WHERE id = $1`

	var row jobRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toDomain(), nil
}

// FindByKey retrieves the job for the idempotency key, or nil.
func (r *JobRepo) FindByKey(ctx context.Context, userID string, ct domain.ContentType, date time.Time) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM content_processing_jobs
		WHERE user_id = $1 AND content_type = $2 AND processing_date = $3`

	var row jobRow
	err := r.db.GetContext(ctx, &row, query, userID, string(ct), domain.DateOf(date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return row.toDomain(), nil
}

// ListFailed retrieves all failed jobs, optionally limited to one user.
func (r *JobRepo) ListFailed(ctx context.Context, userID string) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM content_processing_jobs
		WHERE status = 'failed'`
	args := []any{}
	if userID != "" {
		query += ` AND user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY updated_at DESC`

	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	jobs := make([]*domain.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toDomain())
	}
	return jobs, nil
}

// ClaimPending transitions pending -> running. The WHERE clause is the
// guard: a second worker claiming the same job affects zero rows.
func (r *JobRepo) ClaimPending(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	query := `
		UPDATE content_processing_jobs
		SET status = 'running', started_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id, startedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ResetRetrying transitions retrying -> pending, clearing next_retry_at.
func (r *JobRepo) ResetRetrying(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE content_processing_jobs
		SET status = 'pending', next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'retrying'
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to reset retrying job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCompleted transitions running -> completed.
func (r *JobRepo) MarkCompleted(ctx context.Context, id string, completedAt time.Time, itemsProcessed int) error {
	query := `
		UPDATE content_processing_jobs
		SET status = 'completed', completed_at = $2, items_processed = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`
	_, err := r.db.ExecContext(ctx, query, id, completedAt, itemsProcessed)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// MarkFailed transitions running -> failed.
func (r *JobRepo) MarkFailed(ctx context.Context, id string, errMsg, errTrace string) error {
	query := `
		UPDATE content_processing_jobs
		SET status = 'failed', error_message = $2, error_trace = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`
	_, err := r.db.ExecContext(ctx, query, id, errMsg, errTrace)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return nil
}

// MarkRetrying transitions failed -> retrying.
func (r *JobRepo) MarkRetrying(ctx context.Context, id string, retryCount int, nextRetryAt time.Time) error {
	query := `
		UPDATE content_processing_jobs
		SET status = 'retrying', retry_count = $2, next_retry_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`
	_, err := r.db.ExecContext(ctx, query, id, retryCount, nextRetryAt)
	if err != nil {
		return fmt.Errorf("failed to mark job retrying: %w", err)
	}
	return nil
}

// ResetForReschedule returns a failed job to pending for a fresh run.
func (r *JobRepo) ResetForReschedule(ctx context.Context, id string, scheduledAt time.Time) error {
	query := `
		UPDATE content_processing_jobs
		SET status = 'pending', retry_count = 0, scheduled_at = $2,
			started_at = NULL, completed_at = NULL, next_retry_at = NULL,
			items_processed = 0, error_message = '', error_trace = '', updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`
	_, err := r.db.ExecContext(ctx, query, id, scheduledAt)
	if err != nil {
		return fmt.Errorf("failed to reset job: %w", err)
	}
	return nil
}

// AllCompletedForDate reports whether every job for the key has completed.
func (r *JobRepo) AllCompletedForDate(ctx context.Context, userID, profileID string, date time.Time) (bool, error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed
		FROM content_processing_jobs
		WHERE user_id = $1 AND profile_id = $2 AND processing_date = $3
	`
	var dest struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}
	if err := r.db.GetContext(ctx, &dest, query, userID, profileID, domain.DateOf(date)); err != nil {
		return false, fmt.Errorf("failed to count jobs: %w", err)
	}
	return dest.Total > 0 && dest.Total == dest.Completed, nil
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepo) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM content_processing_jobs GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}

	counts := make(map[domain.JobStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.JobStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// DeleteCompletedBefore prunes old completed jobs.
func (r *JobRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM content_processing_jobs WHERE status = 'completed' AND completed_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	return res.RowsAffected()
}
