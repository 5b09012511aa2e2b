package forecast

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
)

// Prompt is one generation request. System and User are the text sent to a
// chat model; Input is the structured data they were rendered from.
type Prompt struct {
	Symbol contracts.Symbol
	System string
	User   string
	Input  contracts.Aggregate
}

const systemPrompt = "You are a financial data analyst API endpoint. Your sole function is to analyze " +
	"historical stock data and return predictions in strict JSON format. ALWAYS respond with valid JSON only, " +
	"NO explanatory text before or after the JSON, NO markdown formatting or code blocks."

var userTemplate = template.Must(template.New("forecast").Parse(`Role:
You are a financial data analyst API endpoint. Your sole function is to analyze historical stock data and return predictions in strict JSON format.

Critical Instructions:
ALWAYS respond with valid JSON only.
NO explanatory text before or after the JSON.
NO markdown formatting or code blocks.
Use consistent prediction methodology based on technical analysis patterns.
Maintain numerical precision to 2 decimal places.
Maintain consistent time intervals: predicted dates must follow the exact same time gaps as the historical data (for example, if historical data shows weekly intervals every Monday, predictions must be the next 3 consecutive Mondays).
Apply market realism bias: account for market volatility and uncertainty and avoid overly optimistic projections.

Input Format
You will receive five data inputs for stock symbol {{.Symbol}}:

HIGH_PRICES: "YYYY-MM-DD,HH:MM,PRICE" (newline-separated)
LOW_PRICES: "YYYY-MM-DD,HH:MM,PRICE" (newline-separated)
CLOSE_PRICES: "YYYY-MM-DD,HH:MM,PRICE" (newline-separated)
RECENT_NEWS: Recent headlines and article summaries
SOCIAL_MEDIA_POSTS: User comments and influencer posts from Reddit

Prediction Methodology:

Technical Analysis (70% weight): Calculate the 7-point moving average of closing prices, determine trend direction using linear regression on the last 7 data points, apply volatility analysis using the standard deviation of the last 4 data points. Apply conservative bias: reduce projected gains by 20% and increase projected losses by 10%.

Sentiment Analysis (30% weight): Score each news item and social media post:
Very Positive: +1 point (major positive developments, strong praise)
Positive: +0.5 point (minor positive news, general optimism)
Neutral: 0 points (factual reporting, mixed reactions)
Negative: -0.5 point (concerns, minor setbacks)
Very Negative: -1 point (major issues, strong criticism)

Sentiment Integration Rules:
Calculate the average sentiment score from news and social media.
If sentiment score >= 2.0: add 1-3% to the technical prediction.
If sentiment score <= -1.0: subtract 2-4% from the technical prediction.
Otherwise: adjust by the sentiment score as a percentage.

Outlook Classification Rules:
"raise": technical trend > 1% OR sentiment score >= 1.5
"drop": technical trend < -1% OR sentiment score <= -1.0
"stable": all other scenarios

Confidence Scoring Rules (points, then percentage):
Base: 3 points
Strong technical trend (>2%): +3 points, or moderate technical trend (1-2%): +2 points.
Substantial sentiment data with clear direction: +3 points, or moderate sentiment data: +2 points.
Technical and sentiment alignment: +2 points, or conflicting signals: -3 points.
Low volatility: +1 point.
Sparse/poor data: -2 points.
Market uncertainty factor: -1 point (always applied).
Convert to percentage: (points x 10) + 10 = confidence. Confidence must be between 0 and 100.

Required JSON Output Structure (exactly 3 predictions):
{
  "historical": [
    {"date": "YYYY-MM-DD", "high": 0.00, "low": 0.00, "close": 0.00}
  ],
  "forecast": {
    "predictions": [
      {"date": "YYYY-MM-DD", "predicted_high": 0.00, "predicted_low": 0.00, "predicted_close": 0.00},
      {"date": "YYYY-MM-DD", "predicted_high": 0.00, "predicted_low": 0.00, "predicted_close": 0.00},
      {"date": "YYYY-MM-DD", "predicted_high": 0.00, "predicted_low": 0.00, "predicted_close": 0.00}
    ],
    "outlook": "raise | drop | stable",
    "rationale": "Technical analysis shows [trend direction] with [X]% sentiment score from recent news and social media coverage.",
    "confidence": 0
  }
}

Data Input
Stock: {{.Symbol}}
HIGH_PRICES:
{{.High}}
LOW_PRICES:
{{.Low}}
CLOSE_PRICES:
{{.Close}}
RECENT_NEWS:
{{.News}}
SOCIAL_MEDIA_POSTS:
{{.Discussion}}

Final Reminder
Respond ONLY with the JSON object. No additional text, explanations, or formatting.
`))

// BuildPrompt renders the fixed forecasting prompt for sym. The output is
// deterministic for a given input.
func BuildPrompt(sym contracts.Symbol, agg contracts.Aggregate) (Prompt, error) {
	var b strings.Builder
	err := userTemplate.Execute(&b, map[string]string{
		"Symbol":     strings.ToUpper(sym.Ticker),
		"High":       formatSeries(agg.Historical, func(p contracts.PricePoint) float64 { return p.High }),
		"Low":        formatSeries(agg.Historical, func(p contracts.PricePoint) float64 { return p.Low }),
		"Close":      formatSeries(agg.Historical, func(p contracts.PricePoint) float64 { return p.Close }),
		"News":       agg.NewsText,
		"Discussion": agg.DiscussionText,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("render prompt: %w", err)
	}

	return Prompt{
		Symbol: sym,
		System: systemPrompt,
		User:   b.String(),
		Input:  agg,
	}, nil
}

// formatSeries renders "YYYY-MM-DD,HH:MM,PRICE" lines
func formatSeries(points []contracts.PricePoint, value func(contracts.PricePoint) float64) string {
	lines := make([]string, 0, len(points))
	for _, p := range points {
		lines = append(lines, fmt.Sprintf("%s,%s,%.2f", p.Date.Format(contracts.DateLayout), p.Date.Format("15:04"), value(p)))
	}
	return strings.Join(lines, "\n")
}
