package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
)

// ScheduleRepo implements storage.ScheduleRepository using PostgreSQL.
type ScheduleRepo struct {
	db *DB
}

// NewScheduleRepo creates a new PostgreSQL schedule repository.
func NewScheduleRepo(db *DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

type scheduleRow struct {
	UserID             string    `db:"user_id"`
	Enabled            bool      `db:"enabled"`
	ProcessBookmarks   bool      `db:"process_bookmarks"`
	ProcessCuratedFeed bool      `db:"process_curated_feed"`
	ProcessLists       bool      `db:"process_lists"`
	RunAt              string    `db:"run_at"`
	Timezone           string    `db:"timezone"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r scheduleRow) toDomain() (*domain.Schedule, error) {
	runAt, err := domain.ParseTimeOfDay(r.RunAt)
	if err != nil {
		return nil, fmt.Errorf("schedule for user %s: %w", r.UserID, err)
	}
	return &domain.Schedule{
		UserID:             r.UserID,
		Enabled:            r.Enabled,
		ProcessBookmarks:   r.ProcessBookmarks,
		ProcessCuratedFeed: r.ProcessCuratedFeed,
		ProcessLists:       r.ProcessLists,
		RunAt:              runAt,
		Timezone:           r.Timezone,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}

// Get retrieves a user's schedule, or nil when none exists.
func (r *ScheduleRepo) Get(ctx context.Context, userID string) (*domain.Schedule, error) {
	query := `
		SELECT user_id, enabled, process_bookmarks, process_curated_feed, process_lists,
			run_at, timezone, created_at, updated_at
		FROM processing_schedules
		WHERE user_id = $1
	`
	var row scheduleRow
	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return row.toDomain()
}

// Save upserts a schedule.
func (r *ScheduleRepo) Save(ctx context.Context, s *domain.Schedule) error {
	query := `
		INSERT INTO processing_schedules
			(user_id, enabled, process_bookmarks, process_curated_feed, process_lists,
			 run_at, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			process_bookmarks = EXCLUDED.process_bookmarks,
			process_curated_feed = EXCLUDED.process_curated_feed,
			process_lists = EXCLUDED.process_lists,
			run_at = EXCLUDED.run_at,
			timezone = EXCLUDED.timezone,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		s.UserID, s.Enabled, s.ProcessBookmarks, s.ProcessCuratedFeed, s.ProcessLists,
		s.RunAt.String(), s.Timezone,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// ListEnabled retrieves all enabled schedules.
func (r *ScheduleRepo) ListEnabled(ctx context.Context) ([]*domain.Schedule, error) {
	query := `
		SELECT user_id, enabled, process_bookmarks, process_curated_feed, process_lists,
			run_at, timezone, created_at, updated_at
		FROM processing_schedules
		WHERE enabled = TRUE
		ORDER BY user_id
	`
	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	schedules := make([]*domain.Schedule, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}
