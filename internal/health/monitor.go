package health

import (
	"context"
	"sync"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/dispatch"
	"github.com/minhct/harvesterd/internal/infra/storage"
)

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

const (
	failedJobsDegraded = 1
	failedJobsCritical = 50
	queueDepthCritical = 10000
)

// Monitor aggregates health status from the database, the dispatch queue
// and the job table.
type Monitor struct {
	db    Pinger
	queue dispatch.Queue
	jobs  storage.JobRepository

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *Report
}

// NewMonitor creates a health monitor. db may be nil when running on the
// in-memory storage.
func NewMonitor(db Pinger, queue dispatch.Queue, jobs storage.JobRepository) *Monitor {
	return &Monitor{db: db, queue: queue, jobs: jobs}
}

// Check builds the current health report. Results are cached briefly so the
// endpoint cannot hammer the database.
func (m *Monitor) Check(ctx context.Context) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < 10*time.Second {
		return m.lastReport
	}

	report := &Report{
		Status:       StatusHealthy,
		Database:     true,
		Queue:        true,
		JobsByStatus: make(map[string]int),
	}

	if m.db != nil {
		if err := m.db.Ping(ctx); err != nil {
			report.Database = false
		}
	}

	depth, err := m.queue.Depth(ctx)
	if err != nil {
		report.Queue = false
	} else {
		report.QueueDepth = depth
	}

	counts, err := m.jobs.CountByStatus(ctx)
	if err == nil {
		for status, n := range counts {
			report.JobsByStatus[string(status)] = n
		}
		report.FailedJobs = counts[domain.JobStatusFailed]
	}

	switch {
	case !report.Database:
		report.Status = StatusCritical
	case report.FailedJobs >= failedJobsCritical || report.QueueDepth >= queueDepthCritical:
		report.Status = StatusCritical
	case !report.Queue || report.FailedJobs >= failedJobsDegraded:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
