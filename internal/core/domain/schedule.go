package domain

import "time"

// Schedule holds a user's daily processing preferences. Created lazily with
// defaults the first time a user is scheduled.
type Schedule struct {
	UserID             string    `json:"user_id"`
	Enabled            bool      `json:"enabled"`
	ProcessBookmarks   bool      `json:"process_bookmarks"`
	ProcessCuratedFeed bool      `json:"process_curated_feed"`
	ProcessLists       bool      `json:"process_lists"`
	RunAt              TimeOfDay `json:"run_at"`   // daily wall-clock trigger, UTC
	Timezone           string    `json:"timezone"` // display only
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewDefaultSchedule returns the schedule created for users without one:
// enabled, all content types on, 02:00 UTC.
func NewDefaultSchedule(userID string) *Schedule {
	return &Schedule{
		UserID:             userID,
		Enabled:            true,
		ProcessBookmarks:   true,
		ProcessCuratedFeed: true,
		ProcessLists:       true,
		RunAt:              TimeOfDay{Hour: 2},
		Timezone:           "UTC",
	}
}

// ContentTypeEnabled reports whether the schedule has the given content type
// switched on.
func (s *Schedule) ContentTypeEnabled(ct ContentType) bool {
	switch ct {
	case ContentTypeBookmarks:
		return s.ProcessBookmarks
	case ContentTypeCuratedFeed:
		return s.ProcessCuratedFeed
	case ContentTypeLists:
		return s.ProcessLists
	}
	return false
}
