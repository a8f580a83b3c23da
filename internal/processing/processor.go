package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/fetch"
	"github.com/minhct/harvesterd/internal/infra/storage"
	"github.com/minhct/harvesterd/internal/retry"
)

// Result is what a processor hands back on success.
type Result struct {
	ItemsProcessed int
	Metadata       map[string]string
}

// Processor is the per-content-type work contract. Implementations raise
// *domain.ProcessingError on every failure so the executor can derive retry
// eligibility from the kind alone.
type Processor interface {
	// ContentType returns the single content type this processor owns.
	ContentType() domain.ContentType

	// Validate checks the job and profile before any fetching happens.
	Validate(ctx context.Context, job *domain.Job, profile *domain.Profile) error

	// Process fetches and stores the content, returning the item count.
	// Zero items is a success, not an error.
	Process(ctx context.Context, job *domain.Job, profile *domain.Profile) (*Result, error)

	// RetryDelays exposes the backoff ladder the processor expects, so
	// callers arming retries use the same schedule the processor was
	// built for.
	RetryDelays() []time.Duration
}

// Config holds per-content-type fetch limits.
type Config struct {
	BookmarksMaxItems   int `yaml:"bookmarks_max_items"`
	CuratedFeedMaxItems int `yaml:"curated_feed_max_items"`
	ListsMaxItems       int `yaml:"lists_max_items"`
	MaxLists            int `yaml:"max_lists"`
}

// DefaultConfig returns the fetch limits used when config omits them.
func DefaultConfig() Config {
	return Config{
		BookmarksMaxItems:   200,
		CuratedFeedMaxItems: 200,
		ListsMaxItems:       100,
		MaxLists:            10,
	}
}

// Registry maps content types to their processors.
type Registry struct {
	processors map[domain.ContentType]Processor
}

// NewRegistry builds a registry holding the given processors.
func NewRegistry(ps ...Processor) *Registry {
	r := &Registry{processors: make(map[domain.ContentType]Processor)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// NewStandardRegistry builds a registry holding the three production
// processors, all sharing one fetcher and item store.
func NewStandardRegistry(fetcher fetch.Fetcher, items storage.ItemStore, cfg Config) *Registry {
	return NewRegistry(
		NewBookmarksProcessor(fetcher, items, cfg.BookmarksMaxItems),
		NewCuratedFeedProcessor(fetcher, items, cfg.CuratedFeedMaxItems),
		NewListsProcessor(fetcher, items, cfg.ListsMaxItems, cfg.MaxLists),
	)
}

// Register adds or replaces the processor for its content type.
func (r *Registry) Register(p Processor) {
	r.processors[p.ContentType()] = p
}

// ForContentType looks up the processor for a content type.
func (r *Registry) ForContentType(ct domain.ContentType) (Processor, error) {
	p, ok := r.processors[ct]
	if !ok {
		return nil, fmt.Errorf("no processor registered for content type %q", ct)
	}
	return p, nil
}

// retrySchedule gives the production processors the engine's default
// ladder, keeping a single source of truth for backoff.
type retrySchedule struct{}

func (retrySchedule) RetryDelays() []time.Duration {
	return retry.DefaultDelays
}

// validateJob is the shared pre-flight check. The content type must match
// the processor, the user needs a linked profile with working credentials,
// and the processing date may not be in the future.
func validateJob(job *domain.Job, profile *domain.Profile, owns domain.ContentType) error {
	if job.ContentType != owns {
		return domain.NewValidationError(fmt.Sprintf("job content type %q does not match processor %q", job.ContentType, owns))
	}
	if profile == nil {
		return domain.NewValidationError(fmt.Sprintf("user %s has no linked profile", job.UserID))
	}
	if !profile.HasCredentials {
		return domain.NewCredentialError(fmt.Sprintf("profile %s has no stored credentials", profile.Handle))
	}
	if job.ProcessingDate.After(domain.Today()) {
		return domain.NewValidationError(fmt.Sprintf("processing date %s is in the future", job.ProcessingDate.Format("2006-01-02")))
	}
	return nil
}

// toContentItems converts fetched items to storable ones under the job's key.
func toContentItems(job *domain.Job, fetched []fetch.Item) []*domain.ContentItem {
	out := make([]*domain.ContentItem, 0, len(fetched))
	for _, it := range fetched {
		out = append(out, &domain.ContentItem{
			ItemID:         it.ID,
			ProfileID:      job.ProfileID,
			ContentType:    job.ContentType,
			ProcessingDate: job.ProcessingDate,
			Payload:        it.Payload,
		})
	}
	return out
}

// storeFetched persists fetched items and reports both totals.
func storeFetched(ctx context.Context, store storage.ItemStore, job *domain.Job, fetched []fetch.Item, started time.Time) (*Result, error) {
	stored, err := store.StoreItems(ctx, toContentItems(job, fetched))
	if err != nil {
		return nil, domain.Classify(fmt.Errorf("store items: %w", err))
	}
	return &Result{
		ItemsProcessed: len(fetched),
		Metadata: map[string]string{
			"new_items":   fmt.Sprintf("%d", stored),
			"duration_ms": fmt.Sprintf("%d", time.Since(started).Milliseconds()),
		},
	}, nil
}
