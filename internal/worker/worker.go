package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/dispatch"
	"github.com/minhct/harvesterd/internal/executor"
	"github.com/minhct/harvesterd/internal/infra/storage"
	"github.com/minhct/harvesterd/internal/metrics"
)

// Config holds worker pool settings.
type Config struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
	return c
}

// Pool pops due jobs off the dispatch queue and feeds them to the executor.
// It also owns the retrying -> pending reset: a job whose backoff has
// elapsed is reset here so the executor only ever sees pending jobs.
type Pool struct {
	cfg      Config
	queue    dispatch.Queue
	jobs     storage.JobRepository
	executor *executor.Executor
	logger   *slog.Logger
}

func NewPool(cfg Config, queue dispatch.Queue, jobs storage.JobRepository, exec *executor.Executor, logger *slog.Logger) *Pool {
	return &Pool{
		cfg:      cfg.withDefaults(),
		queue:    queue,
		jobs:     jobs,
		executor: exec,
		logger:   logger.With("component", "worker"),
	}
}

// Start runs the pool until the context is cancelled.
func (p *Pool) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			return p.runWorker(ctx, id)
		})
	}
	g.Go(func() error {
		return p.observeDepth(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) runWorker(ctx context.Context, id int) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain everything due before sleeping again.
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			jobID, ok, err := p.queue.PopDue(ctx, time.Now())
			if err != nil {
				p.logger.Error("pop failed", "worker", id, "error", err)
				break
			}
			if !ok {
				break
			}
			p.processOne(ctx, id, jobID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pool) processOne(ctx context.Context, id int, jobID string) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	if err := p.resetIfRetrying(ctx, jobID); err != nil {
		p.logger.Error("retry reset failed", "worker", id, "job_id", jobID, "error", err)
		return
	}

	if err := p.executor.ProcessJob(ctx, jobID); err != nil {
		p.logger.Error("job execution failed", "worker", id, "job_id", jobID, "error", err)
	}
}

// resetIfRetrying moves a due retrying job back to pending so the executor
// can claim it. Jobs in any other state pass through untouched.
func (p *Pool) resetIfRetrying(ctx context.Context, jobID string) error {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if job.Status != domain.JobStatusRetrying {
		return nil
	}
	if _, err := p.jobs.ResetRetrying(ctx, jobID); err != nil {
		return err
	}
	return nil
}

func (p *Pool) observeDepth(ctx context.Context) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			depth, err := p.queue.Depth(ctx)
			if err != nil {
				continue
			}
			metrics.DispatchQueueDepth.Set(float64(depth))
		}
	}
}
