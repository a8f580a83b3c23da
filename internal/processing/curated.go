package processing

import (
	"context"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/fetch"
	"github.com/minhct/harvesterd/internal/infra/storage"
)

// CuratedFeedProcessor handles the curated home feed content type.
type CuratedFeedProcessor struct {
	retrySchedule

	fetcher  fetch.Fetcher
	items    storage.ItemStore
	maxItems int
}

func NewCuratedFeedProcessor(fetcher fetch.Fetcher, items storage.ItemStore, maxItems int) *CuratedFeedProcessor {
	if maxItems <= 0 {
		maxItems = DefaultConfig().CuratedFeedMaxItems
	}
	return &CuratedFeedProcessor{fetcher: fetcher, items: items, maxItems: maxItems}
}

func (p *CuratedFeedProcessor) ContentType() domain.ContentType {
	return domain.ContentTypeCuratedFeed
}

func (p *CuratedFeedProcessor) Validate(ctx context.Context, job *domain.Job, profile *domain.Profile) error {
	return validateJob(job, profile, p.ContentType())
}

func (p *CuratedFeedProcessor) Process(ctx context.Context, job *domain.Job, profile *domain.Profile) (*Result, error) {
	started := time.Now()

	fetched, err := p.fetcher.FetchHomeTimeline(ctx, profile, p.maxItems)
	if err != nil {
		return nil, domain.Classify(err)
	}

	return storeFetched(ctx, p.items, job, fetched, started)
}
