package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/httputil"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// Client fetches price history and quotes from the Yahoo Finance API
// ⭐ SSOT: Yahoo Finance calls happen only in this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("yahoo"),
		baseURL:    baseURL,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			RegularMarketPrice         float64  `json:"regularMarketPrice"`
			RegularMarketPreviousClose float64  `json:"regularMarketPreviousClose"`
			MarketCap                  *float64 `json:"marketCap"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteResponse"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (c *Client) chart(ctx context.Context, ticker, interval, lookback string) (*chartResponse, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), url.Values{
		"interval": {interval},
		"range":    {lookback},
	}.Encode())

	var chart chartResponse
	if err := c.httpClient.GetJSON(ctx, u, nil, &chart); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s", ticker, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: no data returned", ticker)
	}
	return &chart, nil
}

// History returns the bars of ticker at the given interval ("1wk") over
// the lookback range ("4mo"), oldest first. Null bars are skipped.
func (c *Client) History(ctx context.Context, ticker, interval, lookback string) ([]contracts.PricePoint, error) {
	chart, err := c.chart(ctx, ticker, interval, lookback)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: no quote indicators", ticker)
	}
	quote := result.Indicators.Quote[0]

	points := make([]contracts.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		high, low, closePrice := at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if high == nil || low == nil || closePrice == nil {
			continue
		}
		points = append(points, contracts.PricePoint{
			Date:  truncateDay(time.Unix(ts, 0)),
			High:  *high,
			Low:   *low,
			Close: *closePrice,
			Kind:  contracts.PointHistorical,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return dedupeDays(points), nil
}

// Quote returns the current price snapshot. The quote endpoint carries
// market cap; when it is unavailable the chart metadata is used instead.
func (c *Client) Quote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	u := fmt.Sprintf("%s/v7/finance/quote?%s", c.baseURL, url.Values{"symbols": {ticker}}.Encode())

	var resp quoteResponse
	err := c.httpClient.GetJSON(ctx, u, nil, &resp)
	if err == nil && resp.QuoteResponse.Error == nil && len(resp.QuoteResponse.Result) > 0 {
		r := resp.QuoteResponse.Result[0]
		return &contracts.Quote{
			Symbol:        ticker,
			Price:         r.RegularMarketPrice,
			PreviousClose: r.RegularMarketPreviousClose,
			MarketCap:     r.MarketCap,
		}, nil
	}
	if err != nil {
		c.logger.WithField("symbol", ticker).WithError(err).Debug("Quote endpoint failed, using chart metadata")
	}

	chart, chartErr := c.chart(ctx, ticker, "1d", "5d")
	if chartErr != nil {
		return nil, chartErr
	}
	meta := chart.Chart.Result[0].Meta
	prev := meta.PreviousClose
	if prev == 0 {
		prev = meta.ChartPreviousClose
	}
	return &contracts.Quote{
		Symbol:        ticker,
		Price:         meta.RegularMarketPrice,
		PreviousClose: prev,
	}, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dedupeDays keeps the last bar of each day; Yahoo appends the live bar
// with the same date as the current week's bar.
func dedupeDays(points []contracts.PricePoint) []contracts.PricePoint {
	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
