package forecast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

const (
	DiscussionLimit = 10
	NewsFetchLimit  = 10
	NewsLimit       = 7
	BodyRuneLimit   = 200

	HistoryInterval = "1wk"
	HistoryLookback = "4mo"
)

// Channel names used in logs and metrics
const (
	ChannelHistory    = "history"
	ChannelDiscussion = "discussion"
	ChannelNews       = "news"
	ChannelQuote      = "quote"
)

// HistoryProvider fetches a price series
type HistoryProvider interface {
	History(ctx context.Context, ticker, interval, lookback string) ([]contracts.PricePoint, error)
}

// SnippetSearcher searches a text source (posts, articles) for query
type SnippetSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]contracts.Snippet, error)
}

// MarketCapSource returns a quote carrying market capitalization
type MarketCapSource interface {
	Quote(ctx context.Context, sym contracts.Symbol) (*contracts.Quote, error)
}

// AggregatorConfig selects the history window
type AggregatorConfig struct {
	Interval string
	Lookback string
}

// Aggregator collects every forecast input for a symbol
type Aggregator struct {
	history    HistoryProvider
	discussion SnippetSearcher
	news       SnippetSearcher
	quotes     MarketCapSource
	cfg        AggregatorConfig
	logger     *logger.Logger
	metrics    Recorder
}

// NewAggregator creates an aggregator. Any source may be nil, in which
// case its channel is always empty.
func NewAggregator(history HistoryProvider, discussion, news SnippetSearcher, quotes MarketCapSource,
	cfg AggregatorConfig, log *logger.Logger, metrics Recorder) *Aggregator {
	if cfg.Interval == "" {
		cfg.Interval = HistoryInterval
	}
	if cfg.Lookback == "" {
		cfg.Lookback = HistoryLookback
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Aggregator{
		history:    history,
		discussion: discussion,
		news:       news,
		quotes:     quotes,
		cfg:        cfg,
		logger:     log.Component("aggregator"),
		metrics:    metrics,
	}
}

// Aggregate fetches all channels concurrently. A failing channel is logged
// and left empty; Aggregate itself never fails.
func (a *Aggregator) Aggregate(ctx context.Context, sym contracts.Symbol) contracts.Aggregate {
	start := time.Now()
	defer func() { a.metrics.ObserveStage("aggregate", time.Since(start)) }()

	var (
		out   contracts.Aggregate
		query = "$" + sym.Ticker
	)

	g, gctx := errgroup.WithContext(ctx)

	if a.history != nil {
		g.Go(func() error {
			points, err := a.history.History(gctx, sym.Ticker, a.cfg.Interval, a.cfg.Lookback)
			if err != nil {
				a.degrade(sym, ChannelHistory, err)
				return nil
			}
			out.Historical = points
			return nil
		})
	}

	if a.discussion != nil {
		g.Go(func() error {
			posts, err := a.discussion.Search(gctx, query, DiscussionLimit)
			if err != nil {
				a.degrade(sym, ChannelDiscussion, err)
				return nil
			}
			out.Discussion = cleanSnippets(posts, DiscussionLimit, BodyRuneLimit)
			return nil
		})
	}

	if a.news != nil {
		g.Go(func() error {
			articles, err := a.news.Search(gctx, query, NewsFetchLimit)
			if err != nil {
				a.degrade(sym, ChannelNews, err)
				return nil
			}
			out.News = cleanSnippets(articles, NewsLimit, 0)
			return nil
		})
	}

	if a.quotes != nil {
		g.Go(func() error {
			q, err := a.quotes.Quote(gctx, sym)
			if err != nil {
				a.degrade(sym, ChannelQuote, err)
				return nil
			}
			out.MarketCap = q.MarketCap
			return nil
		})
	}

	// goroutines only ever return nil
	_ = g.Wait()

	out.DiscussionText = joinSnippets(out.Discussion)
	out.NewsText = joinSnippets(out.News)

	a.logger.WithFields(map[string]interface{}{
		"symbol":     sym.Ticker,
		"history":    len(out.Historical),
		"discussion": len(out.Discussion),
		"news":       len(out.News),
	}).Debug("Aggregated forecast inputs")

	return out
}

func (a *Aggregator) degrade(sym contracts.Symbol, channel string, err error) {
	a.metrics.RecordProviderFailure(channel)
	a.logger.WithFields(map[string]interface{}{
		"symbol":  sym.Ticker,
		"channel": channel,
	}).WithError(err).Warn("Provider unavailable, continuing without channel")
}

// cleanSnippets flattens markup, truncates bodies to bodyLimit runes
// (0 = unlimited) and keeps at most limit items.
func cleanSnippets(in []contracts.Snippet, limit, bodyLimit int) []contracts.Snippet {
	out := make([]contracts.Snippet, 0, min(len(in), limit))
	for _, s := range in {
		if len(out) == limit {
			break
		}
		body := plainText(s.Body)
		if bodyLimit > 0 {
			body = truncateRunes(body, bodyLimit)
		}
		out = append(out, contracts.Snippet{
			Title: plainText(s.Title),
			Body:  body,
		})
	}
	return out
}

// joinSnippets renders "Title: <t> Description: <d>" items separated by a space
func joinSnippets(items []contracts.Snippet) string {
	parts := make([]string, 0, len(items))
	for _, s := range items {
		parts = append(parts, fmt.Sprintf("Title: %s Description: %s", s.Title, s.Body))
	}
	return strings.Join(parts, " ")
}

// plainText strips HTML and collapses whitespace
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// News returns the cleaned news items for sym without the rest of the
// aggregate.
func (a *Aggregator) News(ctx context.Context, sym contracts.Symbol) ([]contracts.Snippet, error) {
	if a.news == nil {
		return []contracts.Snippet{}, nil
	}
	articles, err := a.news.Search(ctx, "$"+sym.Ticker, NewsFetchLimit)
	if err != nil {
		a.metrics.RecordProviderFailure(ChannelNews)
		return nil, contracts.NewError(contracts.KindProviderUnavailable, "news "+sym.Ticker, err)
	}
	return cleanSnippets(articles, NewsLimit, 0), nil
}
