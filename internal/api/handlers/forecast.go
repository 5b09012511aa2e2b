package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// ForecastService is what the forecast endpoints need from the orchestrator
type ForecastService interface {
	Request(ctx context.Context, symbol string) (*contracts.CacheEntry, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// NewsSource returns recent articles for a symbol
type NewsSource interface {
	News(ctx context.Context, sym contracts.Symbol) ([]contracts.Snippet, error)
}

// ForecastHandler serves predictions, spot prices and news
type ForecastHandler struct {
	service ForecastService
	news    NewsSource
	logger  *logger.Logger
}

// NewForecastHandler creates a new forecast handler. news may be nil.
func NewForecastHandler(service ForecastService, news NewsSource, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{
		service: service,
		news:    news,
		logger:  log.Component("handlers"),
	}
}

// PredictionsResponse is the body of GET /api/predictions.
// Prices maps each date to [high, low, close].
type PredictionsResponse struct {
	Symbol string                `json:"symbol"`
	Prices map[string][3]float64 `json:"prices"`
	Info   PredictionInfo        `json:"info"`
	Series []SeriesPoint         `json:"series"`
}

// PredictionInfo is the forecast summary
type PredictionInfo struct {
	Outlook     contracts.Outlook `json:"outlook"`
	Confidence  int               `json:"confidence"`
	Reasoning   string            `json:"reasoning"`
	MarketCap   *float64          `json:"market_cap"`
	PriceChange float64           `json:"price_change"`
	LastClose   float64           `json:"last_close"`
	LastUpdate  time.Time         `json:"last_update"`
}

// SeriesPoint is one price bar tagged with its kind
type SeriesPoint struct {
	Date  string              `json:"date"`
	High  float64             `json:"high"`
	Low   float64             `json:"low"`
	Close float64             `json:"close"`
	Kind  contracts.PointKind `json:"kind"`
}

// NewPredictionsResponse shapes a cache entry for the API
func NewPredictionsResponse(entry *contracts.CacheEntry) PredictionsResponse {
	resp := PredictionsResponse{
		Symbol: entry.Symbol,
		Prices: make(map[string][3]float64, len(entry.Series)),
		Series: make([]SeriesPoint, 0, len(entry.Series)),
		Info: PredictionInfo{
			Outlook:     entry.Info.Outlook,
			Confidence:  entry.Info.Confidence,
			Reasoning:   entry.Info.Rationale,
			MarketCap:   entry.Info.MarketCap,
			PriceChange: entry.Info.PriceChangePct,
			LastClose:   entry.Info.LastClose,
			LastUpdate:  entry.Info.LastUpdate,
		},
	}
	for _, p := range entry.Series {
		date := p.Date.Format(contracts.DateLayout)
		resp.Prices[date] = [3]float64{p.High, p.Low, p.Close}
		resp.Series = append(resp.Series, SeriesPoint{
			Date:  date,
			High:  p.High,
			Low:   p.Low,
			Close: p.Close,
			Kind:  p.Kind,
		})
	}
	return resp
}

// GetPredictions returns the cached (or freshly generated) forecast
// GET /api/predictions?symbol=AAPL
func (h *ForecastHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	entry, err := h.service.Request(r.Context(), symbol)
	if err != nil {
		h.logger.WithContext(r.Context()).WithField("symbol", symbol).WithError(err).Warn("Prediction request failed")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NewPredictionsResponse(entry))
}

// GetCurrentInfo returns the spot price as plain text
// GET /api/currentinfo?symbol=AAPL
func (h *ForecastHandler) GetCurrentInfo(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	price, err := h.service.CurrentPrice(r.Context(), symbol)
	if err != nil {
		h.logger.WithContext(r.Context()).WithField("symbol", symbol).WithError(err).Warn("Current price request failed")
		respondError(w, err)
		return
	}

	respondText(w, http.StatusOK, strconv.FormatFloat(price, 'f', -1, 64))
}

// NewsResponse is the body of GET /api/news
type NewsResponse struct {
	Symbol   string              `json:"symbol"`
	Articles []contracts.Snippet `json:"articles"`
}

// GetNews returns recent articles for a symbol
// GET /api/news?symbol=AAPL
func (h *ForecastHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	sym, err := contracts.ParseSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		respondError(w, err)
		return
	}
	if h.news == nil {
		respondJSON(w, http.StatusOK, NewsResponse{Symbol: sym.Ticker, Articles: []contracts.Snippet{}})
		return
	}

	articles, err := h.news.News(r.Context(), sym)
	if err != nil {
		h.logger.WithContext(r.Context()).WithField("symbol", sym.Ticker).WithError(err).Warn("News request failed")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NewsResponse{Symbol: sym.Ticker, Articles: articles})
}
