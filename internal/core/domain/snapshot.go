package domain

import "time"

// Snapshot aggregates the content processed for a user on one date. Each
// content type owns exactly one counter: a completed job sets the counter
// for its type, so re-running a job corrects the count instead of
// duplicating it.
type Snapshot struct {
	UserID         string    `json:"user_id"`
	ProfileID      string    `json:"profile_id"`
	ProcessingDate time.Time `json:"processing_date"`

	BookmarkCount    int `json:"bookmark_count"`
	CuratedFeedCount int `json:"curated_feed_count"`
	ListCount        int `json:"list_count"`
	TotalTweetCount  int `json:"total_tweet_count"`

	AllJobsCompleted bool       `json:"all_jobs_completed"`
	LastProcessedAt  *time.Time `json:"last_processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CountFor returns the counter owned by the given content type.
func (s *Snapshot) CountFor(ct ContentType) int {
	switch ct {
	case ContentTypeBookmarks:
		return s.BookmarkCount
	case ContentTypeCuratedFeed:
		return s.CuratedFeedCount
	case ContentTypeLists:
		return s.ListCount
	}
	return 0
}
