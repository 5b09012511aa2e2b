package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/database"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Request(ctx context.Context, symbol string) (*contracts.CacheEntry, error) {
	args := m.Called(ctx, symbol)
	entry, _ := args.Get(0).(*contracts.CacheEntry)
	return entry, args.Error(1)
}

func (m *mockService) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

type stubNews struct {
	items []contracts.Snippet
	err   error
}

func (s stubNews) News(ctx context.Context, sym contracts.Symbol) ([]contracts.Snippet, error) {
	return s.items, s.err
}

func sampleEntry() *contracts.CacheEntry {
	day := time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC)
	marketCap := 2.5e12
	return &contracts.CacheEntry{
		Symbol: "aapl",
		Series: []contracts.PricePoint{
			{Date: day, High: 231, Low: 225.5, Close: 229.86, Kind: contracts.PointHistorical},
			{Date: day.AddDate(0, 0, 7), High: 234, Low: 228, Close: 232.1, Kind: contracts.PointPredicted},
		},
		Info: contracts.GenInfo{
			LastUpdate:     day.Add(20 * time.Hour),
			LastClose:      229.86,
			Outlook:        contracts.OutlookRaise,
			PriceChangePct: 0.97,
			Confidence:     60,
			Rationale:      "Technical analysis shows an upward trend.",
			MarketCap:      &marketCap,
		},
	}
}

func TestGetPredictions(t *testing.T) {
	svc := new(mockService)
	svc.On("Request", mock.Anything, "AAPL").Return(sampleEntry(), nil)
	h := NewForecastHandler(svc, nil, logger.Nop())

	rec := httptest.NewRecorder()
	h.GetPredictions(rec, httptest.NewRequest(http.MethodGet, "/api/predictions?symbol=AAPL", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body PredictionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, [3]float64{231, 225.5, 229.86}, body.Prices["2025-01-27"])
	assert.Equal(t, [3]float64{234, 228, 232.1}, body.Prices["2025-02-03"])
	assert.Equal(t, contracts.OutlookRaise, body.Info.Outlook)
	assert.Equal(t, 60, body.Info.Confidence)
	assert.Equal(t, "Technical analysis shows an upward trend.", body.Info.Reasoning)
	assert.Equal(t, 0.97, body.Info.PriceChange)
	require.NotNil(t, body.Info.MarketCap)
	require.Len(t, body.Series, 2)
	assert.Equal(t, contracts.PointPredicted, body.Series[1].Kind)
}

func TestGetPredictions_ErrorKinds(t *testing.T) {
	tests := []struct {
		kind   contracts.ErrorKind
		status int
	}{
		{contracts.KindInput, http.StatusBadRequest},
		{contracts.KindNotFound, http.StatusNotFound},
		{contracts.KindGeneration, http.StatusBadGateway},
		{contracts.KindParse, http.StatusBadGateway},
		{contracts.KindPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			svc := new(mockService)
			svc.On("Request", mock.Anything, "x").Return(nil, contracts.NewError(tt.kind, "op", errors.New("cause")))

			rec := httptest.NewRecorder()
			NewForecastHandler(svc, nil, logger.Nop()).
				GetPredictions(rec, httptest.NewRequest(http.MethodGet, "/api/predictions?symbol=x", nil))

			assert.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.Kind)
			assert.Contains(t, body.Error, "cause")
		})
	}
}

func TestStatusFor_PlainErrors(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadGateway, StatusFor(contracts.NewError(contracts.KindProviderUnavailable, "quote", nil)))
}

func TestGetCurrentInfo(t *testing.T) {
	svc := new(mockService)
	svc.On("CurrentPrice", mock.Anything, "btc-usd").Return(97123.45, nil)

	rec := httptest.NewRecorder()
	NewForecastHandler(svc, nil, logger.Nop()).
		GetCurrentInfo(rec, httptest.NewRequest(http.MethodGet, "/api/currentinfo?symbol=btc-usd", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "97123.45", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestGetNews(t *testing.T) {
	news := stubNews{items: []contracts.Snippet{{Title: "Apple beats", Body: "Record quarter"}}}
	h := NewForecastHandler(new(mockService), news, logger.Nop())

	rec := httptest.NewRecorder()
	h.GetNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?symbol=AAPL", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body NewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "aapl", body.Symbol)
	assert.Len(t, body.Articles, 1)

	rec = httptest.NewRecorder()
	h.GetNews(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubHealth struct {
	err error
}

func (s stubHealth) HealthCheck(ctx context.Context) (*database.HealthStatus, error) {
	if s.err != nil {
		return &database.HealthStatus{Error: s.err.Error()}, s.err
	}
	return &database.HealthStatus{Healthy: true}, nil
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(stubHealth{}, "investanalytics").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	NewHealthHandler(stubHealth{err: errors.New("refused")}, "investanalytics").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}
