package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
)

// SnapshotRepo implements storage.SnapshotRepository using PostgreSQL.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// ApplyJobResult upserts the snapshot and sets the counter owned by the
// job's content type. One statement, so concurrent jobs for other content
// types of the same key merge instead of overwriting each other.
func (r *SnapshotRepo) ApplyJobResult(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO daily_content_snapshots
			(user_id, profile_id, processing_date,
			 bookmark_count, curated_feed_count, list_count, total_tweet_count,
			 all_jobs_completed, created_at, updated_at)
		VALUES ($1, $2, $3,
			CASE WHEN $4 = 'bookmarks' THEN $5 ELSE 0 END,
			CASE WHEN $4 = 'curated_feed' THEN $5 ELSE 0 END,
			CASE WHEN $4 = 'lists' THEN $5 ELSE 0 END,
			$5, FALSE, NOW(), NOW())
		ON CONFLICT (user_id, profile_id, processing_date) DO UPDATE SET
			bookmark_count = CASE WHEN $4 = 'bookmarks' THEN $5
				ELSE daily_content_snapshots.bookmark_count END,
			curated_feed_count = CASE WHEN $4 = 'curated_feed' THEN $5
				ELSE daily_content_snapshots.curated_feed_count END,
			list_count = CASE WHEN $4 = 'lists' THEN $5
				ELSE daily_content_snapshots.list_count END,
			total_tweet_count =
				(CASE WHEN $4 = 'bookmarks' THEN $5 ELSE daily_content_snapshots.bookmark_count END) +
				(CASE WHEN $4 = 'curated_feed' THEN $5 ELSE daily_content_snapshots.curated_feed_count END) +
				(CASE WHEN $4 = 'lists' THEN $5 ELSE daily_content_snapshots.list_count END),
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		job.UserID, job.ProfileID, job.ProcessingDate,
		string(job.ContentType), job.ItemsProcessed,
	)
	if err != nil {
		return fmt.Errorf("failed to apply job result to snapshot: %w", err)
	}
	return nil
}

// MarkAllCompleted flags the snapshot once every job for the key completed.
func (r *SnapshotRepo) MarkAllCompleted(ctx context.Context, userID, profileID string, date, completedAt time.Time) error {
	query := `
		UPDATE daily_content_snapshots
		SET all_jobs_completed = TRUE, last_processed_at = $4, updated_at = NOW()
		WHERE user_id = $1 AND profile_id = $2 AND processing_date = $3
	`
	_, err := r.db.ExecContext(ctx, query, userID, profileID, domain.DateOf(date), completedAt)
	if err != nil {
		return fmt.Errorf("failed to mark snapshot completed: %w", err)
	}
	return nil
}

// Get retrieves a snapshot, or nil when none exists.
func (r *SnapshotRepo) Get(ctx context.Context, userID, profileID string, date time.Time) (*domain.Snapshot, error) {
	query := `
		SELECT user_id, profile_id, processing_date,
			bookmark_count, curated_feed_count, list_count, total_tweet_count,
			all_jobs_completed, last_processed_at, created_at, updated_at
		FROM daily_content_snapshots
		WHERE user_id = $1 AND profile_id = $2 AND processing_date = $3
	`
	var row struct {
		UserID           string     `db:"user_id"`
		ProfileID        string     `db:"profile_id"`
		ProcessingDate   time.Time  `db:"processing_date"`
		BookmarkCount    int        `db:"bookmark_count"`
		CuratedFeedCount int        `db:"curated_feed_count"`
		ListCount        int        `db:"list_count"`
		TotalTweetCount  int        `db:"total_tweet_count"`
		AllJobsCompleted bool       `db:"all_jobs_completed"`
		LastProcessedAt  *time.Time `db:"last_processed_at"`
		CreatedAt        time.Time  `db:"created_at"`
		UpdatedAt        time.Time  `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row, query, userID, profileID, domain.DateOf(date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &domain.Snapshot{
		UserID:           row.UserID,
		ProfileID:        row.ProfileID,
		ProcessingDate:   domain.DateOf(row.ProcessingDate),
		BookmarkCount:    row.BookmarkCount,
		CuratedFeedCount: row.CuratedFeedCount,
		ListCount:        row.ListCount,
		TotalTweetCount:  row.TotalTweetCount,
		AllJobsCompleted: row.AllJobsCompleted,
		LastProcessedAt:  row.LastProcessedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}
