package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/minhct/harvesterd/internal/infra/storage"
)

// Pruner deletes completed jobs past the retention window.
type Pruner struct {
	retention time.Duration
	jobs      storage.JobRepository
	logger    *slog.Logger
}

// NewPruner creates a pruner. A non-positive retention disables it.
func NewPruner(retention time.Duration, jobs storage.JobRepository, logger *slog.Logger) *Pruner {
	return &Pruner{
		retention: retention,
		jobs:      jobs,
		logger:    logger.With("component", "pruner"),
	}
}

// Start runs the pruner loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	deleted, err := p.jobs.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to prune completed jobs", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("pruned completed jobs", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
}
