package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// DefaultTTL is how long a cache entry is served before regeneration
const DefaultTTL = 9 * time.Hour

// EntryStore is the part of the cache store the gate needs
type EntryStore interface {
	GenInfo(ctx context.Context, key string) (*contracts.GenInfo, error)
	Delete(ctx context.Context, key string) error
}

// Gate decides whether a cache entry may be served
type Gate struct {
	store   EntryStore
	ttl     time.Duration
	now     func() time.Time
	logger  *logger.Logger
	metrics Recorder
}

// NewGate creates a gate; ttl <= 0 selects DefaultTTL
func NewGate(store EntryStore, ttl time.Duration, log *logger.Logger, metrics Recorder) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Gate{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.Component("gate"),
		metrics: metrics,
	}
}

// Check classifies the entry for key. A stale entry is evicted before
// Stale is returned, so the next check reports Absent.
func (g *Gate) Check(ctx context.Context, key string) (contracts.Freshness, error) {
	info, err := g.store.GenInfo(ctx, key)
	if errors.Is(err, contracts.ErrNotFound) {
		g.metrics.RecordGate(string(contracts.Absent))
		return contracts.Absent, nil
	}
	if err != nil {
		return "", err
	}

	age := g.now().Sub(info.LastUpdate)
	if age <= g.ttl {
		g.metrics.RecordGate(string(contracts.Fresh))
		return contracts.Fresh, nil
	}

	if err := g.store.Delete(ctx, key); err != nil {
		return "", err
	}

	g.logger.WithFields(map[string]interface{}{
		"symbol": key,
		"age":    age.Round(time.Second).String(),
	}).Info("Evicted stale cache entry")
	g.metrics.RecordGate(string(contracts.Stale))

	return contracts.Stale, nil
}
