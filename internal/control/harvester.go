package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minhct/harvesterd/internal/core/config"
	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/dispatch"
	"github.com/minhct/harvesterd/internal/executor"
	"github.com/minhct/harvesterd/internal/health"
	"github.com/minhct/harvesterd/internal/infra/fetch"
	redisclient "github.com/minhct/harvesterd/internal/infra/redis"
	"github.com/minhct/harvesterd/internal/infra/storage"
	"github.com/minhct/harvesterd/internal/infra/storage/memory"
	"github.com/minhct/harvesterd/internal/infra/storage/postgres"
	"github.com/minhct/harvesterd/internal/processing"
	"github.com/minhct/harvesterd/internal/retry"
	"github.com/minhct/harvesterd/internal/scheduling"
	"github.com/minhct/harvesterd/internal/worker"
)

// Harvester is the main application struct wiring storage, scheduling,
// dispatch and execution together.
type Harvester struct {
	cfg          *config.AppConfig
	jobs         storage.JobRepository
	dispatcher   *dispatch.Dispatcher
	scheduler    *scheduling.Scheduler
	executor     *executor.Executor
	pool         *worker.Pool
	pruner       *worker.Pruner
	healthServer *health.Server
	store        *memory.MemoryStorage
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewHarvester creates a Harvester with all dependencies initialized.
// Without a database URL it runs entirely on in-memory storage; without a
// Redis URL the dispatch queue is in-process.
func NewHarvester(cfg *config.AppConfig) (*Harvester, error) {
	log := slog.Default()

	var (
		jobs      storage.JobRepository
		schedules storage.ScheduleRepository
		profiles  storage.ProfileRepository
		snapshots storage.SnapshotRepository
		items     storage.ItemStore
		store     *memory.MemoryStorage
		db        *postgres.DB
		dbPinger  health.Pinger
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}

		jobs = postgres.NewJobRepo(db)
		schedules = postgres.NewScheduleRepo(db)
		profiles = postgres.NewProfileRepo(db)
		snapshots = postgres.NewSnapshotRepo(db)
		items = postgres.NewItemRepo(db)
		dbPinger = health.PingerFunc(db.Health)
		log.Info("Using PostgreSQL storage")
	} else {
		store = memory.NewMemoryStorage()
		jobs = memory.NewJobRepo(store)
		schedules = memory.NewScheduleRepo(store)
		profiles = memory.NewProfileRepo(store)
		snapshots = memory.NewSnapshotRepo(store)
		items = memory.NewItemRepo(store)
		log.Info("Using Memory storage")
	}

	var (
		queue       dispatch.Queue
		redisClient *redisclient.Client
	)
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		queue = redisclient.NewQueue(redisClient)
		log.Info("Using Redis dispatch queue")
	} else {
		queue = dispatch.NewMemoryQueue()
		log.Info("Using in-process dispatch queue")
	}

	dispatcher := dispatch.NewDispatcher(queue)
	fetcher := fetch.NewHTTPFetcher(cfg.Fetch)
	registry := processing.NewStandardRegistry(fetcher, items, cfg.Processing)
	engine := retry.NewEngine(jobs, nil)

	exec := executor.NewExecutor(jobs, profiles, snapshots, registry, engine, dispatcher, log)
	scheduler := scheduling.NewScheduler(jobs, schedules, profiles, dispatcher, log)
	pool := worker.NewPool(cfg.Worker, queue, jobs, exec, log)
	pruner := worker.NewPruner(cfg.Retention, jobs, log)

	healthMon := health.NewMonitor(dbPinger, queue, jobs)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	return &Harvester{
		cfg:          cfg,
		jobs:         jobs,
		dispatcher:   dispatcher,
		scheduler:    scheduler,
		executor:     exec,
		pool:         pool,
		pruner:       pruner,
		healthServer: healthServer,
		store:        store,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Start starts the harvester and all its background loops.
func (h *Harvester) Start(ctx context.Context) error {
	go func() {
		if err := h.healthServer.Start(); err != nil {
			h.log.Error("Health server failed", "error", err)
		}
	}()

	if h.db != nil {
		h.db.StartMetricsCollector(ctx)
	}

	go func() {
		if err := h.pool.Start(ctx); err != nil {
			h.log.Error("Worker pool failed", "error", err)
		}
	}()

	go h.pruner.Start(ctx)
	go h.runDailyScheduler(ctx)

	return nil
}

// Stop stops the harvester.
func (h *Harvester) Stop(ctx context.Context) error {
	h.log.Info("Stopping Harvester...")

	if h.redisClient != nil {
		if err := h.redisClient.Close(); err != nil {
			h.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			h.log.Warn("Failed to close database", "error", err)
		}
	}

	return h.healthServer.Stop(ctx)
}

// ScheduleDaily fans out jobs for every enabled schedule on the given date.
func (h *Harvester) ScheduleDaily(ctx context.Context, date time.Time) ([]*domain.Job, error) {
	return h.scheduler.ScheduleDailyJobs(ctx, date)
}

// ScheduleUser schedules jobs for one user and date.
func (h *Harvester) ScheduleUser(ctx context.Context, userID string, date time.Time, immediate bool) ([]*domain.Job, error) {
	return h.scheduler.ScheduleUserJobs(ctx, userID, date, immediate)
}

// ResetFailed returns failed jobs to pending and enqueues them for
// immediate execution. An empty userID resets every failed job.
func (h *Harvester) ResetFailed(ctx context.Context, userID string) (int, error) {
	failed, err := h.jobs.ListFailed(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list failed jobs: %w", err)
	}

	reset := 0
	now := time.Now()
	for _, job := range failed {
		if err := h.jobs.ResetForReschedule(ctx, job.ID, now); err != nil {
			return reset, fmt.Errorf("reset job %s: %w", job.ID, err)
		}
		if err := h.dispatcher.EnqueueNow(ctx, job.ID); err != nil {
			return reset, fmt.Errorf("enqueue job %s: %w", job.ID, err)
		}
		reset++
	}
	if reset > 0 {
		h.log.Info("reset failed jobs", "count", reset, "user_id", userID)
	}
	return reset, nil
}

// ProcessJob executes a single job by id.
func (h *Harvester) ProcessJob(ctx context.Context, jobID string) error {
	return h.executor.ProcessJob(ctx, jobID)
}

// MemoryStore returns the in-memory storage, or nil when running on
// PostgreSQL. Used for seeding in tests and local development.
func (h *Harvester) MemoryStore() *memory.MemoryStorage {
	return h.store
}

// JobCounts returns the number of jobs per status.
func (h *Harvester) JobCounts(ctx context.Context) (map[domain.JobStatus]int, error) {
	return h.jobs.CountByStatus(ctx)
}

// runDailyScheduler fires the fanout once per calendar day. The fanout is
// idempotent, so firing at startup for today is safe even after a restart.
func (h *Harvester) runDailyScheduler(ctx context.Context) {
	lastDate := domain.Today()
	if jobs, err := h.scheduler.ScheduleDailyJobs(ctx, lastDate); err != nil {
		h.log.Error("Startup scheduling failed", "error", err)
	} else {
		h.log.Info("Startup scheduling done", "jobs", len(jobs))
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			today := domain.Today()
			if today.Equal(lastDate) {
				continue
			}
			lastDate = today
			if jobs, err := h.scheduler.ScheduleDailyJobs(ctx, today); err != nil {
				h.log.Error("Daily scheduling failed", "error", err)
			} else {
				h.log.Info("Daily scheduling done", "date", today.Format("2006-01-02"), "jobs", len(jobs))
			}
		}
	}
}
