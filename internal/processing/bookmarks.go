package processing

import (
	"context"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/fetch"
	"github.com/minhct/harvesterd/internal/infra/storage"
)

// BookmarksProcessor handles the bookmarks content type.
type BookmarksProcessor struct {
	retrySchedule

	fetcher  fetch.Fetcher
	items    storage.ItemStore
	maxItems int
}

func NewBookmarksProcessor(fetcher fetch.Fetcher, items storage.ItemStore, maxItems int) *BookmarksProcessor {
	if maxItems <= 0 {
		maxItems = DefaultConfig().BookmarksMaxItems
	}
	return &BookmarksProcessor{fetcher: fetcher, items: items, maxItems: maxItems}
}

func (p *BookmarksProcessor) ContentType() domain.ContentType {
	return domain.ContentTypeBookmarks
}

func (p *BookmarksProcessor) Validate(ctx context.Context, job *domain.Job, profile *domain.Profile) error {
	return validateJob(job, profile, p.ContentType())
}

func (p *BookmarksProcessor) Process(ctx context.Context, job *domain.Job, profile *domain.Profile) (*Result, error) {
	started := time.Now()

	fetched, err := p.fetcher.FetchBookmarks(ctx, profile, p.maxItems)
	if err != nil {
		return nil, domain.Classify(err)
	}

	return storeFetched(ctx, p.items, job, fetched, started)
}
