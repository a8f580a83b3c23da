package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/fetch"
	"github.com/minhct/harvesterd/internal/infra/storage"
)

// ListsProcessor handles the lists content type. It walks the profile's
// followed lists and fetches each list's timeline in turn.
type ListsProcessor struct {
	retrySchedule

	fetcher  fetch.Fetcher
	items    storage.ItemStore
	maxItems int
	maxLists int
}

func NewListsProcessor(fetcher fetch.Fetcher, items storage.ItemStore, maxItems, maxLists int) *ListsProcessor {
	def := DefaultConfig()
	if maxItems <= 0 {
		maxItems = def.ListsMaxItems
	}
	if maxLists <= 0 {
		maxLists = def.MaxLists
	}
	return &ListsProcessor{fetcher: fetcher, items: items, maxItems: maxItems, maxLists: maxLists}
}

func (p *ListsProcessor) ContentType() domain.ContentType {
	return domain.ContentTypeLists
}

func (p *ListsProcessor) Validate(ctx context.Context, job *domain.Job, profile *domain.Profile) error {
	return validateJob(job, profile, p.ContentType())
}

func (p *ListsProcessor) Process(ctx context.Context, job *domain.Job, profile *domain.Profile) (*Result, error) {
	started := time.Now()

	lists, err := p.fetcher.FetchLists(ctx, profile)
	if err != nil {
		return nil, domain.Classify(err)
	}
	if len(lists) > p.maxLists {
		lists = lists[:p.maxLists]
	}

	var fetched []fetch.Item
	for _, list := range lists {
		items, err := p.fetcher.FetchListTimeline(ctx, profile, list.ID, p.maxItems)
		if err != nil {
			// A failed list aborts the job; the retry reprocesses all
			// lists and dedup makes the replay harmless.
			return nil, domain.Classify(fmt.Errorf("list %s (%s): %w", list.ID, list.Name, err))
		}
		fetched = append(fetched, items...)
	}

	result, err := storeFetched(ctx, p.items, job, fetched, started)
	if err != nil {
		return nil, err
	}
	result.Metadata["lists_processed"] = fmt.Sprintf("%d", len(lists))
	return result, nil
}
