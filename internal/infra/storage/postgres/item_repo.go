package postgres

import (
	"context"
	"fmt"

	"github.com/minhct/harvesterd/internal/core/domain"
)

// ItemRepo implements storage.ItemStore using PostgreSQL. Items are keyed
// by (profile, content type, item id), so refetching a day's content only
// stores what is genuinely new.
type ItemRepo struct {
	db *DB
}

// NewItemRepo creates a new PostgreSQL item store.
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// StoreItems inserts items, skipping ones already stored. Returns the
// number of newly stored items.
func (r *ItemRepo) StoreItems(ctx context.Context, items []*domain.ContentItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO content_items (profile_id, content_type, item_id, processing_date, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (profile_id, content_type, item_id) DO NOTHING
	`

	stored := 0
	for _, item := range items {
		res, err := r.db.ExecContext(ctx, query,
			item.ProfileID, string(item.ContentType), item.ItemID,
			domain.DateOf(item.ProcessingDate), item.Payload,
		)
		if err != nil {
			return stored, fmt.Errorf("failed to store item %s: %w", item.ItemID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stored, err
		}
		stored += int(n)
	}
	return stored, nil
}
