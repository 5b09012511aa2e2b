package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// Refresher regenerates one symbol's forecast
type Refresher interface {
	Refresh(ctx context.Context, symbol string) error
}

// RefreshJob regenerates the popular symbols one after another, pausing
// between symbols to stay within provider quotas.
type RefreshJob struct {
	refresher Refresher
	symbols   []string
	interval  time.Duration
	schedule  string
	logger    *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRefreshJob creates the popular-symbol refresh job
func NewRefreshJob(refresher Refresher, symbols []string, cfg config.RefresherConfig, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		symbols:   symbols,
		interval:  cfg.Interval,
		schedule:  cfg.Schedule,
		logger:    log.Component("refresh_job"),
		sleep:     sleepContext,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "popular_refresh"
}

// Schedule returns the configured cron expression
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes every symbol once. A failed symbol is logged and skipped;
// the run fails only if every symbol failed or ctx was cancelled.
func (j *RefreshJob) Run(ctx context.Context) error {
	j.logger.WithField("symbols", len(j.symbols)).Info("Starting popular symbol refresh")

	failed := 0
	for i, symbol := range j.symbols {
		if i > 0 {
			if err := j.sleep(ctx, j.interval); err != nil {
				return err
			}
		}

		if err := j.refresher.Refresh(ctx, symbol); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			j.logger.WithField("symbol", symbol).WithError(err).Warn("Symbol refresh failed")
			continue
		}
		j.logger.WithField("symbol", symbol).Debug("Symbol refreshed")
	}

	j.logger.WithFields(map[string]interface{}{
		"refreshed": len(j.symbols) - failed,
		"failed":    failed,
	}).Info("Popular symbol refresh finished")

	if failed > 0 && failed == len(j.symbols) {
		return fmt.Errorf("all %d symbol refreshes failed", failed)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
