package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
	"github.com/tylerle0/InvestAnalytics/pkg/redis"
)

// QuoteProvider fetches a current quote for a ticker
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (*contracts.Quote, error)
}

// QuoteCache is a short-lived quote cache. *redis.Cache implements it.
type QuoteCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// QuoteService serves quotes through an optional cache
type QuoteService struct {
	provider QuoteProvider
	cache    QuoteCache
	ttl      time.Duration
	logger   *logger.Logger
}

// NewQuoteService creates a quote service. cache may be nil.
func NewQuoteService(provider QuoteProvider, cache QuoteCache, ttl time.Duration, log *logger.Logger) *QuoteService {
	if ttl <= 0 {
		ttl = redis.TTLShort
	}
	return &QuoteService{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		logger:   log.Component("quotes"),
	}
}

// Quote returns the symbol's quote, from cache when possible.
// Cache errors are logged and bypassed.
func (s *QuoteService) Quote(ctx context.Context, sym contracts.Symbol) (*contracts.Quote, error) {
	key := redis.QuoteKey(sym.Key)

	if s.cache != nil {
		var cached contracts.Quote
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).Warn("Quote cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	q, err := s.provider.Quote(ctx, sym.Ticker)
	if err != nil {
		return nil, contracts.NewError(contracts.KindProviderUnavailable, "quote "+sym.Ticker, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, q, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Quote cache write failed")
		}
	}

	return q, nil
}

// Spot returns the current price, else the previous close
func (s *QuoteService) Spot(ctx context.Context, sym contracts.Symbol) (float64, error) {
	q, err := s.Quote(ctx, sym)
	if err != nil {
		return 0, err
	}
	price, ok := q.Spot()
	if !ok {
		return 0, contracts.NewError(contracts.KindProviderUnavailable, "quote "+sym.Ticker, errors.New("no price in quote"))
	}
	return price, nil
}
