package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
)

// ProfileRepo implements storage.ProfileRepository using PostgreSQL. The
// profile table is owned by the account service; this repository only reads.
type ProfileRepo struct {
	db *DB
}

// NewProfileRepo creates a new PostgreSQL profile repository.
func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetByUser retrieves the profile linked to a user, or nil.
func (r *ProfileRepo) GetByUser(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT id, user_id, handle, has_credentials, created_at
		FROM twitter_profiles
		WHERE user_id = $1
	`
	var row struct {
		ID             string    `db:"id"`
		UserID         string    `db:"user_id"`
		Handle         string    `db:"handle"`
		HasCredentials bool      `db:"has_credentials"`
		CreatedAt      time.Time `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &domain.Profile{
		ID:             row.ID,
		UserID:         row.UserID,
		Handle:         row.Handle,
		HasCredentials: row.HasCredentials,
		CreatedAt:      row.CreatedAt,
	}, nil
}
