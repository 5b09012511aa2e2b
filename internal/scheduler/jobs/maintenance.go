package jobs

import (
	"context"
	"time"

	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// Pruner removes cache entries last updated before cutoff
type Pruner interface {
	PruneStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneJob sweeps expired cache entries that no request has touched
type PruneJob struct {
	store  Pruner
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// NewPruneJob creates a new prune job
func NewPruneJob(store Pruner, ttl time.Duration, log *logger.Logger) *PruneJob {
	return &PruneJob{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: log.Component("prune_job"),
	}
}

// Name returns the job name
func (j *PruneJob) Name() string {
	return "cache_prune"
}

// Schedule returns the cron schedule (hourly)
func (j *PruneJob) Schedule() string {
	return "0 15 * * * *"
}

// Run deletes entries older than the TTL
func (j *PruneJob) Run(ctx context.Context) error {
	removed, err := j.store.PruneStale(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Cache prune completed")
	}
	return nil
}
