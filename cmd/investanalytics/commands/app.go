package commands

import (
	"context"
	"fmt"

	"github.com/tylerle0/InvestAnalytics/internal/external/gnews"
	"github.com/tylerle0/InvestAnalytics/internal/external/openai"
	"github.com/tylerle0/InvestAnalytics/internal/external/reddit"
	"github.com/tylerle0/InvestAnalytics/internal/external/yahoo"
	"github.com/tylerle0/InvestAnalytics/internal/forecast"
	"github.com/tylerle0/InvestAnalytics/internal/realtime"
	"github.com/tylerle0/InvestAnalytics/internal/scheduler"
	"github.com/tylerle0/InvestAnalytics/internal/scheduler/jobs"
	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/database"
	"github.com/tylerle0/InvestAnalytics/pkg/httputil"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
	"github.com/tylerle0/InvestAnalytics/pkg/metrics"
	"github.com/tylerle0/InvestAnalytics/pkg/redis"
)

const keyPrefix = "investanalytics"

// app holds every long-lived dependency a command needs
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	metrics *metrics.Recorder
	symbols *config.SymbolLists

	repo         *forecast.Repository
	aggregator   *forecast.Aggregator
	orchestrator *forecast.Orchestrator
	hub          *realtime.Hub
}

// newApp loads configuration and wires the forecast pipeline
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if symbolsFile != "" {
		cfg.Refresher.SymbolsFile = symbolsFile
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	symbols, err := config.LoadSymbols(cfg.Refresher.SymbolsFile)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}

	// 3. Connect to database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (disabled unless REDIS_ENABLED)
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without quote cache")
		rdb = redis.Disabled()
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   rdb,
		metrics: metrics.New(),
		symbols: symbols,
		hub:     realtime.NewHub(log),
	}

	// 5. External clients; a failed call is never repeated
	yahooClient := yahoo.NewClient(httputil.New(log), log, cfg.Yahoo.BaseURL)
	redditClient := reddit.NewClient(httputil.New(log).WithUserAgent(cfg.Reddit.UserAgent), log, cfg.Reddit)
	gnewsClient := gnews.NewClient(httputil.New(log), log, cfg.GNews)

	// 6. Pipeline components
	var quoteCache forecast.QuoteCache
	if rdb.Enabled() {
		quoteCache = redis.NewCache(rdb, keyPrefix)
	}
	quotes := forecast.NewQuoteService(yahooClient, quoteCache, cfg.Cache.QuoteTTL, log)

	var news forecast.SnippetSearcher
	if cfg.GNews.APIKey != "" {
		news = gnewsClient
	}
	a.aggregator = forecast.NewAggregator(yahooClient, redditClient, news, quotes,
		forecast.AggregatorConfig{Interval: cfg.Yahoo.Interval, Lookback: cfg.Yahoo.Lookback},
		log, a.metrics)

	generator := forecast.NewGenerator(a.newCompleter(), log, a.metrics)

	a.repo = forecast.NewRepository(db.Pool)
	gate := forecast.NewGate(a.repo, cfg.Cache.TTL, log, a.metrics)

	a.orchestrator = forecast.NewOrchestrator(forecast.Deps{
		Gate:      gate,
		Inputs:    a.aggregator,
		Generator: generator,
		Store:     a.repo,
		Spot:      quotes,
		Majors:    symbols,
		Notifier:  a.hub,
		Metrics:   a.metrics,
	}, forecast.OrchestratorConfig{
		MajorSymbolPolicy: cfg.Cache.MajorSymbolPolicy,
		RefreshTimeout:    cfg.Cache.RefreshTimeout,
	}, log)

	return a, nil
}

// newCompleter selects the text generation backend
func (a *app) newCompleter() forecast.Completer {
	if a.cfg.Generator.Provider == config.ProviderLocal {
		a.log.Info("Using local forecast generator")
		return forecast.NewLocalCompleter()
	}

	// quota is shared through Redis; no-op when Redis is disabled
	httpClient := httputil.NewWithTimeout(a.log, a.cfg.Generator.Timeout).
		WithRateLimiter(redis.NewRateLimiter(a.redis, keyPrefix), redis.OpenAIRateLimit)
	return forecast.NewChatCompleter(openai.NewClient(httpClient, a.log, a.cfg.Generator))
}

// newScheduler registers the background jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	if err := sched.AddJob(jobs.NewRefreshJob(a.orchestrator, a.symbols.Popular, a.cfg.Refresher, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewPruneJob(a.repo, a.cfg.Cache.TTL, a.log)); err != nil {
		return nil, err
	}

	return sched, nil
}

// migrate applies the cache schema
func (a *app) migrate(ctx context.Context) error {
	if err := a.repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.log.Info("Schema up to date")
	return nil
}

// Close releases connections
func (a *app) Close() {
	a.hub.Close()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close Redis")
	}
	a.db.Close()
}
