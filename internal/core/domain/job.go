package domain

import "time"

// JobStatus is the state machine position of a processing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// DefaultMaxRetries matches the length of the retry delay ladder.
const DefaultMaxRetries = 5

// Job tracks a single content processing attempt for one user, one content
// type and one processing date. The (user, profile, content_type,
// processing_date) tuple is unique and acts as the idempotency key.
type Job struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	ProfileID      string      `json:"profile_id"`
	ContentType    ContentType `json:"content_type"`
	ProcessingDate time.Time   `json:"processing_date"` // calendar date, UTC midnight

	Status     JobStatus `json:"status"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`

	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	ItemsProcessed int    `json:"items_processed"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ErrorTrace     string `json:"error_trace,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RetriesExhausted reports whether no further retry may be armed.
func (j *Job) RetriesExhausted() bool {
	return j.RetryCount >= j.MaxRetries
}
