// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full system health report.
type Report struct {
	Status       SystemStatus   `json:"status"`
	Database     bool           `json:"database"`
	Queue        bool           `json:"queue"`
	QueueDepth   int64          `json:"queue_depth"`
	JobsByStatus map[string]int `json:"jobs_by_status"`
	FailedJobs   int            `json:"failed_jobs"`
}
