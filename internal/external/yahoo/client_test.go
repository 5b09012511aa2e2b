package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/httputil"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "regularMarketPrice": 190.5, "chartPreviousClose": 185.0},
      "timestamp": [1704067200, 1704672000, 1705276800, 1705320000],
      "indicators": {"quote": [{
        "high":  [186.0, 188.0, null, 192.0],
        "low":   [180.0, 183.0, null, 187.0],
        "close": [185.0, 186.5, null, 190.5]
      }]}
    }],
    "error": null
  }
}`

func newTestClient(serverURL string) *Client {
	return NewClient(httputil.New(logger.Nop()), logger.Nop(), serverURL)
}

func TestHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/btc-usd", r.URL.Path)
		assert.Equal(t, "1wk", r.URL.Query().Get("interval"))
		assert.Equal(t, "4mo", r.URL.Query().Get("range"))
		w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	points, err := newTestClient(server.URL).History(context.Background(), "btc-usd", "1wk", "4mo")
	require.NoError(t, err)

	// null bar skipped, live bar replaces the bar of the same day
	require.Len(t, points, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), points[0].Date)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), points[2].Date)
	assert.Equal(t, 190.5, points[2].Close)
	for _, p := range points {
		assert.Equal(t, contracts.PointHistorical, p.Kind)
	}
}

func TestHistory_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"bad json", http.StatusOK, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).History(context.Background(), "zzzz", "1wk", "4mo")
			assert.Error(t, err)
		})
	}
}

func TestHistory_ServerErrorSingleCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).History(context.Background(), "aapl", "1wk", "4mo")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "aapl", r.URL.Query().Get("symbols"))
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"AAPL","regularMarketPrice":191.2,"regularMarketPreviousClose":190.0,"marketCap":2950000000000}],"error":null}}`))
	}))
	defer server.Close()

	q, err := newTestClient(server.URL).Quote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 191.2, q.Price)
	require.NotNil(t, q.MarketCap)
	assert.Equal(t, 2.95e12, *q.MarketCap)
}

func TestQuote_FallsBackToChart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v7/finance/quote" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	q, err := newTestClient(server.URL).Quote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 190.5, q.Price)
	assert.Equal(t, 185.0, q.PreviousClose)
	assert.Nil(t, q.MarketCap)
}
