package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

type stubHistory struct {
	points []contracts.PricePoint
	err    error
	args   []string
}

func (s *stubHistory) History(ctx context.Context, ticker, interval, lookback string) ([]contracts.PricePoint, error) {
	s.args = []string{ticker, interval, lookback}
	return s.points, s.err
}

type stubSearch struct {
	items []contracts.Snippet
	err   error
	query string
	limit int
}

func (s *stubSearch) Search(ctx context.Context, query string, limit int) ([]contracts.Snippet, error) {
	s.query, s.limit = query, limit
	return s.items, s.err
}

type stubQuotes struct {
	quote *contracts.Quote
	err   error
}

func (s *stubQuotes) Quote(ctx context.Context, sym contracts.Symbol) (*contracts.Quote, error) {
	return s.quote, s.err
}

type countingRecorder struct {
	nopRecorder
	mu       sync.Mutex
	failures []string
	refresh  []string
}

func (r *countingRecorder) RecordProviderFailure(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, channel)
}

func (r *countingRecorder) RecordRefresh(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh = append(r.refresh, outcome)
}

func snippets(n int, body string) []contracts.Snippet {
	out := make([]contracts.Snippet, n)
	for i := range out {
		out[i] = contracts.Snippet{Title: fmt.Sprintf("post %d", i), Body: body}
	}
	return out
}

func TestAggregator_AllChannels(t *testing.T) {
	capValue := 1.2e12
	history := &stubHistory{points: weeklySeries(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 10, 11)}
	reddit := &stubSearch{items: snippets(12, strings.Repeat("é", 250))}
	news := &stubSearch{items: []contracts.Snippet{
		{Title: "<b>Shares</b> &amp; bonds", Body: "<p>Record   <i>quarter</i></p>"},
	}}
	quotes := &stubQuotes{quote: &contracts.Quote{Price: 11, MarketCap: &capValue}}

	agg := NewAggregator(history, reddit, news, quotes, AggregatorConfig{}, logger.Nop(), nil).
		Aggregate(context.Background(), testSymbol(t, "BTC-USD"))

	assert.Equal(t, []string{"btc-usd", "1wk", "4mo"}, history.args)
	assert.Len(t, agg.Historical, 2)

	assert.Equal(t, "$btc-usd", reddit.query)
	assert.Equal(t, DiscussionLimit, reddit.limit)
	require.Len(t, agg.Discussion, DiscussionLimit)
	assert.Equal(t, BodyRuneLimit, len([]rune(agg.Discussion[0].Body)))

	assert.Equal(t, NewsFetchLimit, news.limit)
	require.Len(t, agg.News, 1)
	assert.Equal(t, "Title: Shares & bonds Description: Record quarter", agg.NewsText)
	assert.True(t, strings.HasPrefix(agg.DiscussionText, "Title: post 0 Description: "))

	require.NotNil(t, agg.MarketCap)
	assert.Equal(t, capValue, *agg.MarketCap)
}

func TestAggregator_NewsLimit(t *testing.T) {
	news := &stubSearch{items: snippets(10, "x")}

	agg := NewAggregator(nil, nil, news, nil, AggregatorConfig{}, logger.Nop(), nil).
		Aggregate(context.Background(), testSymbol(t, "aapl"))

	assert.Len(t, agg.News, NewsLimit)
	assert.Equal(t, NewsLimit, strings.Count(agg.NewsText, "Title: "))
}

func TestAggregator_DegradesPerChannel(t *testing.T) {
	rec := &countingRecorder{}
	boom := errors.New("503 service unavailable")

	agg := NewAggregator(
		&stubHistory{points: weeklySeries(time.Now(), 1, 2, 3)},
		&stubSearch{err: boom},
		&stubSearch{err: boom},
		&stubQuotes{err: boom},
		AggregatorConfig{}, logger.Nop(), rec,
	).Aggregate(context.Background(), testSymbol(t, "nvda"))

	assert.Len(t, agg.Historical, 3)
	assert.Empty(t, agg.Discussion)
	assert.Empty(t, agg.News)
	assert.Equal(t, "", agg.DiscussionText)
	assert.Equal(t, "", agg.NewsText)
	assert.Nil(t, agg.MarketCap)
	assert.ElementsMatch(t, []string{ChannelDiscussion, ChannelNews, ChannelQuote}, rec.failures)
}

func TestAggregator_EverythingFails(t *testing.T) {
	boom := errors.New("down")
	agg := NewAggregator(&stubHistory{err: boom}, &stubSearch{err: boom}, &stubSearch{err: boom}, nil,
		AggregatorConfig{}, logger.Nop(), nil).Aggregate(context.Background(), testSymbol(t, "nvda"))

	assert.Empty(t, agg.Historical)
	assert.Empty(t, agg.NewsText)
}
