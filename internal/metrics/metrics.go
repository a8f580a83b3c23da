package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsScheduled tracks jobs created per content type
	JobsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesterd_jobs_scheduled_total",
			Help: "Total number of jobs scheduled",
		},
		[]string{"content_type"},
	)

	// JobsProcessed tracks terminal job outcomes per content type
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesterd_jobs_processed_total",
			Help: "Total number of job executions by outcome",
		},
		[]string{"content_type", "outcome"},
	)

	// JobRetriesScheduled tracks retries armed per content type
	JobRetriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesterd_job_retries_scheduled_total",
			Help: "Total number of retries scheduled",
		},
		[]string{"content_type"},
	)

	// ItemsProcessed tracks content items handled per content type
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesterd_items_processed_total",
			Help: "Total number of content items processed",
		},
		[]string{"content_type"},
	)

	// JobDuration tracks wall time of job executions
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvesterd_job_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"content_type"},
	)

	// DispatchQueueDepth tracks jobs waiting in the dispatch queue
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvesterd_dispatch_queue_depth",
			Help: "Number of jobs waiting in the dispatch queue",
		},
	)

	// DBConnectionPoolUsage tracks open database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvesterd_db_connection_pool_usage",
			Help: "Number of open database connections",
		},
	)
)
