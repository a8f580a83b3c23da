package fetch

import (
	"context"
	"encoding/json"

	"github.com/minhct/harvesterd/internal/core/domain"
)

// Item is one raw content item as returned by the scraper service.
type Item struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// List describes one list the profile follows.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Fetcher is the acquisition collaborator. Implementations raise
// domain.ProcessingError kinds on every error path so the executor never
// has to guess retry eligibility.
type Fetcher interface {
	// FetchBookmarks retrieves the profile's bookmarked posts.
	FetchBookmarks(ctx context.Context, profile *domain.Profile, maxItems int) ([]Item, error)

	// FetchHomeTimeline retrieves the profile's curated home feed.
	FetchHomeTimeline(ctx context.Context, profile *domain.Profile, maxItems int) ([]Item, error)

	// FetchLists retrieves the lists the profile follows.
	FetchLists(ctx context.Context, profile *domain.Profile) ([]List, error)

	// FetchListTimeline retrieves the timeline of one list.
	FetchListTimeline(ctx context.Context, profile *domain.Profile, listID string, maxItems int) ([]Item, error)
}
