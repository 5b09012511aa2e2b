package forecast

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

const defaultRefreshTimeout = 3 * time.Minute

// Store is the cache store used by the orchestrator
type Store interface {
	EntryStore
	Read(ctx context.Context, key string) (*contracts.CacheEntry, error)
	Refresh(ctx context.Context, in RefreshInput) error
}

// InputCollector gathers forecast inputs. *Aggregator implements it.
type InputCollector interface {
	Aggregate(ctx context.Context, sym contracts.Symbol) contracts.Aggregate
}

// TextGenerator produces raw forecast text. *Generator implements it.
type TextGenerator interface {
	Generate(ctx context.Context, sym contracts.Symbol, agg contracts.Aggregate) (string, error)
}

// SpotSource returns a symbol's current price. *QuoteService implements it.
type SpotSource interface {
	Spot(ctx context.Context, sym contracts.Symbol) (float64, error)
}

// MajorList reports allow-listed symbols. *config.SymbolLists implements it.
type MajorList interface {
	IsMajor(ticker string) bool
}

// Notifier is told about every committed refresh
type Notifier interface {
	NotifyRefresh(ev contracts.RefreshEvent)
}

// OrchestratorConfig holds the request policy
type OrchestratorConfig struct {
	MajorSymbolPolicy string
	RefreshTimeout    time.Duration
}

// Orchestrator serves forecast requests from the cache, regenerating
// entries that are missing, stale or allow-listed.
type Orchestrator struct {
	gate      *Gate
	inputs    InputCollector
	generator TextGenerator
	store     Store
	spot      SpotSource
	majors    MajorList
	notifier  Notifier
	cfg       OrchestratorConfig
	logger    *logger.Logger
	metrics   Recorder

	inflight singleflight.Group
}

// Deps bundles the orchestrator's collaborators. Spot, Majors and
// Notifier are optional.
type Deps struct {
	Gate      *Gate
	Inputs    InputCollector
	Generator TextGenerator
	Store     Store
	Spot      SpotSource
	Majors    MajorList
	Notifier  Notifier
	Metrics   Recorder
}

// NewOrchestrator wires an orchestrator
func NewOrchestrator(deps Deps, cfg OrchestratorConfig, log *logger.Logger) *Orchestrator {
	if cfg.MajorSymbolPolicy == "" {
		cfg.MajorSymbolPolicy = config.PolicyRegenerate
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	return &Orchestrator{
		gate:      deps.Gate,
		inputs:    deps.Inputs,
		generator: deps.Generator,
		store:     deps.Store,
		spot:      deps.Spot,
		majors:    deps.Majors,
		notifier:  deps.Notifier,
		cfg:       cfg,
		logger:    log.Component("orchestrator"),
		metrics:   deps.Metrics,
	}
}

// Request returns the cache entry for raw, refreshing it first when the
// gate (or the major-symbol policy) requires it. Nothing is retried.
func (o *Orchestrator) Request(ctx context.Context, raw string) (*contracts.CacheEntry, error) {
	sym, err := contracts.ParseSymbol(raw)
	if err != nil {
		return nil, err
	}

	if o.isMajor(sym) {
		if o.cfg.MajorSymbolPolicy == config.PolicyServeCached {
			entry, err := o.store.Read(ctx, sym.Key)
			if err == nil {
				return entry, nil
			}
			if !errors.Is(err, contracts.ErrNotFound) {
				return nil, err
			}
		}
		if err := o.refresh(ctx, sym); err != nil {
			return nil, err
		}
		return o.store.Read(ctx, sym.Key)
	}

	state, err := o.gate.Check(ctx, sym.Key)
	if err != nil {
		return nil, err
	}
	if state != contracts.Fresh {
		if err := o.refresh(ctx, sym); err != nil {
			return nil, err
		}
	}

	return o.store.Read(ctx, sym.Key)
}

// Refresh unconditionally regenerates the entry for raw
func (o *Orchestrator) Refresh(ctx context.Context, raw string) error {
	sym, err := contracts.ParseSymbol(raw)
	if err != nil {
		return err
	}
	return o.refresh(ctx, sym)
}

// CurrentPrice returns the spot price for raw
func (o *Orchestrator) CurrentPrice(ctx context.Context, raw string) (float64, error) {
	sym, err := contracts.ParseSymbol(raw)
	if err != nil {
		return 0, err
	}
	if o.spot == nil {
		return 0, contracts.NewError(contracts.KindProviderUnavailable, "current price", errors.New("no quote source configured"))
	}
	return o.spot.Spot(ctx, sym)
}

func (o *Orchestrator) isMajor(sym contracts.Symbol) bool {
	return o.majors != nil && o.majors.IsMajor(sym.Ticker)
}

// refresh coalesces concurrent refreshes of one symbol. The shared run
// outlives any single caller's cancellation but not the refresh timeout.
func (o *Orchestrator) refresh(ctx context.Context, sym contracts.Symbol) error {
	ch := o.inflight.DoChan(sym.Key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RefreshTimeout)
		defer cancel()
		return nil, o.runPipeline(rctx, sym)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Shared {
			o.logger.WithContext(ctx).WithField("symbol", sym.Ticker).Debug("Joined in-flight refresh")
		}
		return res.Err
	}
}

func (o *Orchestrator) runPipeline(ctx context.Context, sym contracts.Symbol) (err error) {
	start := time.Now()
	log := o.logger.WithContext(ctx).WithField("symbol", sym.Ticker)

	defer func() {
		o.metrics.ObserveStage("refresh", time.Since(start))
		if err != nil {
			o.metrics.RecordRefresh(string(contracts.KindOf(err)))
			log.WithError(err).Error("Refresh failed")
			return
		}
		o.metrics.RecordRefresh("success")
	}()

	agg := o.inputs.Aggregate(ctx, sym)

	raw, err := o.generator.Generate(ctx, sym, agg)
	if err != nil {
		return err
	}

	parseStart := time.Now()
	parsed, err := Parse(raw)
	o.metrics.ObserveStage("parse", time.Since(parseStart))
	if err != nil {
		return err
	}

	spot := parsed.Historical[len(parsed.Historical)-1].Close
	if o.spot != nil {
		price, err := o.spot.Spot(ctx, sym)
		if err != nil {
			log.WithError(err).Warn("Spot price unavailable, using last close")
		} else {
			spot = price
		}
	}

	storeStart := time.Now()
	err = o.store.Refresh(ctx, RefreshInput{
		Key:       sym.Key,
		Forecast:  parsed,
		MarketCap: agg.MarketCap,
		SpotPrice: spot,
	})
	o.metrics.ObserveStage("store", time.Since(storeStart))
	if err != nil {
		return err
	}

	info := BuildGenInfo(parsed, spot, agg.MarketCap, time.Now())
	log.WithFields(map[string]interface{}{
		"outlook":    info.Outlook,
		"confidence": info.Confidence,
		"duration":   time.Since(start).String(),
	}).Info("Refreshed forecast")

	if o.notifier != nil {
		o.notifier.NotifyRefresh(contracts.RefreshEvent{
			Symbol:         sym.Ticker,
			Outlook:        info.Outlook,
			Confidence:     info.Confidence,
			PriceChangePct: info.PriceChangePct,
			LastUpdate:     info.LastUpdate,
		})
	}

	return nil
}
