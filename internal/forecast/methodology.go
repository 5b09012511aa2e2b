package forecast

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
)

// Methodology constants shared by the prompt and the local model
const (
	GainShrink       = 0.8
	LossInflate      = 1.1
	TrendWindow      = 7
	VolatilityWindow = 4
	PredictionCount  = 3

	defaultSpacing = 7 * 24 * time.Hour
)

// ErrNoHistory is returned when there is no price history to analyze
var ErrNoHistory = errors.New("no historical prices")

// Analysis is the outcome of running the forecasting methodology
type Analysis struct {
	MovingAverage  float64
	Slope          float64
	TrendPct       float64
	Volatility     float64
	Sentiment      float64
	SentimentItems int
	Outlook        contracts.Outlook
	Confidence     int
	Historical     []contracts.PricePoint
	Predictions    []contracts.PricePoint
	Rationale      string
}

// Analyze applies the technical/sentiment methodology to agg
func Analyze(agg contracts.Aggregate) (*Analysis, error) {
	if len(agg.Historical) == 0 {
		return nil, ErrNoHistory
	}

	closes := make([]float64, len(agg.Historical))
	for i, p := range agg.Historical {
		closes[i] = p.Close
	}

	items := make([]contracts.Snippet, 0, len(agg.News)+len(agg.Discussion))
	items = append(items, agg.News...)
	items = append(items, agg.Discussion...)

	a := &Analysis{
		MovingAverage:  MovingAverage(closes, TrendWindow),
		Slope:          LinearSlope(tail(closes, TrendWindow)),
		Volatility:     StdDev(tail(closes, VolatilityWindow)),
		Sentiment:      SentimentScore(items),
		SentimentItems: len(items),
	}
	if a.MovingAverage != 0 {
		a.TrendPct = a.Slope / a.MovingAverage * 100
	}

	a.Outlook = DecideOutlook(a.TrendPct, a.Sentiment)
	a.Confidence = ConfidenceFromPoints(ConfidencePoints(a, len(closes)))

	a.Historical = make([]contracts.PricePoint, len(agg.Historical))
	for i, p := range agg.Historical {
		a.Historical[i] = contracts.PricePoint{
			Date:  p.Date,
			High:  round2(p.High),
			Low:   round2(p.Low),
			Close: round2(p.Close),
			Kind:  contracts.PointHistorical,
		}
	}

	a.Predictions = project(agg.Historical, a)
	a.Rationale = rationale(a)

	return a, nil
}

// DecideOutlook classifies the trend (percent per period) and sentiment.
// Raise wins over drop when both fire.
func DecideOutlook(trendPct, sentiment float64) contracts.Outlook {
	switch {
	case trendPct > 1 || sentiment >= 1.5:
		return contracts.OutlookRaise
	case trendPct < -1 || sentiment <= -1.0:
		return contracts.OutlookDrop
	default:
		return contracts.OutlookStable
	}
}

// SentimentAdjustmentPct maps the sentiment score to a percent adjustment
// of the technical projection.
func SentimentAdjustmentPct(sentiment float64) float64 {
	switch {
	case sentiment >= 2.0:
		return 2
	case sentiment <= -1.0:
		return -3
	default:
		return sentiment
	}
}

// ConfidencePoints scores the signals; historyLen is the number of bars.
func ConfidencePoints(a *Analysis, historyLen int) int {
	points := 3

	absTrend := math.Abs(a.TrendPct)
	switch {
	case absTrend > 2:
		points += 3
	case absTrend >= 1:
		points += 2
	}

	absSentiment := math.Abs(a.Sentiment)
	switch {
	case a.SentimentItems >= 5 && absSentiment >= 0.5:
		points += 3
	case a.SentimentItems >= 3 && absSentiment >= 0.25:
		points += 2
	}

	trendDir, sentimentDir := 0.0, 0.0
	if absTrend >= 1 {
		trendDir = math.Copysign(1, a.TrendPct)
	}
	if absSentiment >= 0.25 {
		sentimentDir = math.Copysign(1, a.Sentiment)
	}
	if trendDir != 0 && sentimentDir != 0 {
		if trendDir == sentimentDir {
			points += 2
		} else {
			points -= 3
		}
	}

	if a.MovingAverage > 0 && a.Volatility/a.MovingAverage < 0.02 {
		points++
	}

	if historyLen < VolatilityWindow || a.SentimentItems == 0 {
		points -= 2
	}

	// market uncertainty
	points--

	return points
}

// ConfidenceFromPoints converts points to a percentage in [0, 100]
func ConfidenceFromPoints(points int) int {
	c := points*10 + 10
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// MovingAverage averages the last window values (fewer if short)
func MovingAverage(values []float64, window int) float64 {
	w := tail(values, window)
	if len(w) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

// LinearSlope is the least-squares slope of values against their index
func LinearSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

// StdDev is the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := MovingAverage(values, len(values))
	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Spacing is the gap between the last two bars, one week by default
func Spacing(points []contracts.PricePoint) time.Duration {
	if len(points) < 2 {
		return defaultSpacing
	}
	d := points[len(points)-1].Date.Sub(points[len(points)-2].Date)
	if d <= 0 {
		return defaultSpacing
	}
	return d
}

var (
	positiveWords = wordSet("beat", "beats", "surge", "surges", "soar", "soars", "record", "rally", "rallies",
		"bullish", "upgrade", "upgraded", "growth", "strong", "gain", "gains", "outperform", "profit",
		"jump", "jumps", "boom", "rise", "rises", "buy", "breakout", "moon")
	negativeWords = wordSet("miss", "misses", "plunge", "plunges", "drop", "drops", "fall", "falls",
		"bearish", "downgrade", "downgraded", "lawsuit", "weak", "loss", "losses", "underperform", "crash",
		"slump", "decline", "declines", "recall", "probe", "fraud", "layoffs", "sell", "selloff", "puts")
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ScoreSnippet places one item on the five-step scale
// {-1, -0.5, 0, +0.5, +1} by counting lexicon hits.
func ScoreSnippet(s contracts.Snippet) float64 {
	net := 0
	words := strings.FieldsFunc(strings.ToLower(s.Title+" "+s.Body), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			net++
		}
		if _, ok := negativeWords[w]; ok {
			net--
		}
	}

	switch {
	case net >= 2:
		return 1
	case net == 1:
		return 0.5
	case net == -1:
		return -0.5
	case net <= -2:
		return -1
	default:
		return 0
	}
}

// SentimentScore averages item scores; no items means neutral
func SentimentScore(items []contracts.Snippet) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, it := range items {
		sum += ScoreSnippet(it)
	}
	return sum / float64(len(items))
}

func project(history []contracts.PricePoint, a *Analysis) []contracts.PricePoint {
	last := history[len(history)-1]
	step := Spacing(history)
	adj := SentimentAdjustmentPct(a.Sentiment)

	out := make([]contracts.PricePoint, 0, PredictionCount)
	for k := 1; k <= PredictionCount; k++ {
		change := a.Slope * float64(k)
		if change > 0 {
			change *= GainShrink
		} else {
			change *= LossInflate
		}
		technical := last.Close + change
		closePrice := technical * (1 + adj/100)

		out = append(out, contracts.PricePoint{
			Date:  last.Date.Add(time.Duration(k) * step),
			High:  round2(closePrice + a.Volatility),
			Low:   round2(math.Max(closePrice-a.Volatility, 0)),
			Close: round2(closePrice),
			Kind:  contracts.PointPredicted,
		})
	}
	return out
}

func rationale(a *Analysis) string {
	direction := "a sideways"
	switch {
	case a.TrendPct >= 1:
		direction = "an upward"
	case a.TrendPct <= -1:
		direction = "a downward"
	}
	return fmt.Sprintf("Technical analysis shows %s trend (%.2f%% per period, volatility %.2f) with a %.2f sentiment score from %d news and social media items.",
		direction, a.TrendPct, a.Volatility, a.Sentiment, a.SentimentItems)
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
